package genai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kisansetu/backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testRecords() (*models.User, *models.User, *models.Listing, *models.Proposal) {
	farmer := &models.User{ID: uuid.New(), Name: "Ramesh Patel", Role: models.RoleFarmer}
	buyer := &models.User{ID: uuid.New(), Name: "Anita Rao", Role: models.RoleBuyer}
	listing := &models.Listing{
		ID:            uuid.New(),
		FarmerID:      farmer.ID,
		CropType:      "wheat",
		Quantity:      100,
		DeliveryDate:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		ExpectedPrice: decimal.NewFromInt(250),
	}
	proposal := &models.Proposal{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   buyer.ID,
		Price:     decimal.NewFromInt(200),
	}
	return farmer, buyer, listing, proposal
}

func TestFallbackContract(t *testing.T) {
	farmer, buyer, listing, proposal := testRecords()

	text := FallbackContract(farmer, buyer, listing, proposal)

	assert.Contains(t, text, "CROP PURCHASE CONTRACT")
	assert.Contains(t, text, "Ramesh Patel")
	assert.Contains(t, text, "Anita Rao")
	assert.Contains(t, text, "Crop Type: wheat")
	assert.Contains(t, text, "Quantity: 100 units")
	assert.Contains(t, text, "2026-10-01")
	assert.Contains(t, text, "₹200.00")
	// No explicit terms on the proposal, so the default applies
	assert.Contains(t, text, "Payment on successful delivery")
}

func TestFallbackContract_PaymentTerms(t *testing.T) {
	farmer, buyer, listing, proposal := testRecords()
	proposal.PaymentTerms = "50% advance, 50% on delivery"

	text := FallbackContract(farmer, buyer, listing, proposal)
	assert.Contains(t, text, "50% advance, 50% on delivery")
}

func TestClient_GenerateContract(t *testing.T) {
	farmer, buyer, listing, proposal := testRecords()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"GENERATED CONTRACT PROSE"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-1.5-flash", zerolog.Nop()).WithEndpoint(server.URL)
	text := client.GenerateContract(context.Background(), farmer, buyer, listing, proposal)
	assert.Equal(t, "GENERATED CONTRACT PROSE", text)
}

func TestClient_GenerateContract_ProviderError(t *testing.T) {
	farmer, buyer, listing, proposal := testRecords()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-1.5-flash", zerolog.Nop()).WithEndpoint(server.URL)
	text := client.GenerateContract(context.Background(), farmer, buyer, listing, proposal)

	// Provider failure never surfaces; the deterministic template is used
	assert.Contains(t, text, "CROP PURCHASE CONTRACT")
	assert.Contains(t, text, "Ramesh Patel")
	assert.Contains(t, text, "Anita Rao")
	assert.Contains(t, text, "₹200.00")
}

func TestClient_GenerateContract_NoAPIKey(t *testing.T) {
	farmer, buyer, listing, proposal := testRecords()

	client := NewClient("", "gemini-1.5-flash", zerolog.Nop())
	text := client.GenerateContract(context.Background(), farmer, buyer, listing, proposal)
	assert.Contains(t, text, "CROP PURCHASE CONTRACT")
}

func TestClient_GenerateContract_EmptyCandidate(t *testing.T) {
	farmer, buyer, listing, proposal := testRecords()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "gemini-1.5-flash", zerolog.Nop()).WithEndpoint(server.URL)
	text := client.GenerateContract(context.Background(), farmer, buyer, listing, proposal)
	assert.Contains(t, text, "CROP PURCHASE CONTRACT")
}
