// Package genai produces contract prose from the marketplace records.
// The Gemini REST API does the writing; when it is unreachable or
// misconfigured the deterministic template below is used instead, so
// callers never see an error from this package.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kisansetu/backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// Generator turns the four marketplace records into contract text.
type Generator interface {
	GenerateContract(ctx context.Context, farmer, buyer *models.User, listing *models.Listing, proposal *models.Proposal) string
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
	log      zerolog.Logger
}

// NewClient creates a Gemini-backed generator. The key and model come from
// configuration, not process globals.
func NewClient(apiKey, model string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// WithEndpoint overrides the API base URL. Used by tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// GenerateContract asks the model for contract prose and falls back to the
// template on any failure.
func (c *Client) GenerateContract(ctx context.Context, farmer, buyer *models.User, listing *models.Listing, proposal *models.Proposal) string {
	text, err := c.generate(ctx, farmer, buyer, listing, proposal)
	if err != nil {
		c.log.Warn().Err(err).Msg("text generation failed, using fallback template")
		return FallbackContract(farmer, buyer, listing, proposal)
	}
	return text
}

func (c *Client) generate(ctx context.Context, farmer, buyer *models.User, listing *models.Listing, proposal *models.Proposal) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured")
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": buildPrompt(farmer, buyer, listing, proposal)}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generateContent returned %d", resp.StatusCode)
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text")
	if !text.Exists() || text.String() == "" {
		return "", fmt.Errorf("empty candidate in response")
	}
	return text.String(), nil
}

func buildPrompt(farmer, buyer *models.User, listing *models.Listing, proposal *models.Proposal) string {
	return fmt.Sprintf(`Generate a simple crop purchase contract with the following details:

FARMER (SELLER):
- Name: %s
- Role: Farmer/Seller

BUYER:
- Name: %s
- Role: Buyer

CROP DETAILS:
- Crop Type: %s
- Quantity: %d units
- Delivery Date: %s
- Agreed Price: ₹%s
- Payment Terms: %s

Please generate a clear, legally-formatted contract in English that includes:
1. Contract title and date
2. Party details
3. Crop specifications
4. Price and payment terms
5. Delivery terms
6. Basic terms and conditions
7. Signature lines

Keep it professional but simple to understand for farmers and buyers.
Format it properly with clear sections and make it look professional.`,
		farmer.Name, buyer.Name, listing.CropType, listing.Quantity,
		listing.DeliveryDate.Format("2006-01-02"), proposal.Price.StringFixed(2),
		paymentTerms(proposal, "Payment on delivery"))
}

// FallbackContract is the deterministic template used when the provider
// fails. It is populated from the same four records the prompt uses.
func FallbackContract(farmer, buyer *models.User, listing *models.Listing, proposal *models.Proposal) string {
	now := time.Now()
	return fmt.Sprintf(`CROP PURCHASE CONTRACT

Contract Date: %s
Contract ID: CRP-%s

PARTIES TO THE CONTRACT:

SELLER (FARMER):
Name: %s
Role: Agricultural Producer/Seller

BUYER:
Name: %s
Role: Purchaser

CROP PURCHASE DETAILS:

1. CROP SPECIFICATION:
   - Crop Type: %s
   - Quantity: %d units
   - Quality: As per standard market grade

2. DELIVERY TERMS:
   - Delivery Date: %s
   - Delivery Location: To be mutually agreed

3. PRICING & PAYMENT:
   - Total Contract Value: ₹%s
   - Payment Terms: %s

4. TERMS & CONDITIONS:
   - The seller agrees to deliver the specified quantity of crop
   - The buyer agrees to accept delivery and make payment as agreed
   - Both parties agree to the terms mentioned above

SIGNATURES:

Seller (Farmer): ________________    Date: ___________
%s

Buyer: ________________             Date: ___________
%s

This contract is binding upon both parties.`,
		now.Format("2006-01-02"), now.Format("20060102150405"),
		farmer.Name, buyer.Name,
		listing.CropType, listing.Quantity, listing.DeliveryDate.Format("2006-01-02"),
		proposal.Price.StringFixed(2), paymentTerms(proposal, "Payment on successful delivery"),
		farmer.Name, buyer.Name)
}

func paymentTerms(proposal *models.Proposal, fallback string) string {
	if proposal.PaymentTerms != "" {
		return proposal.PaymentTerms
	}
	return fallback
}
