package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kisansetu/backend/internal/apperr"
	"github.com/kisansetu/backend/internal/auth"
	"github.com/kisansetu/backend/internal/contracts"
	"github.com/kisansetu/backend/internal/db"
	"github.com/kisansetu/backend/internal/models"
	"github.com/kisansetu/backend/internal/wallet"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// APIResponse is the envelope every mutating endpoint returns.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	DB        *db.DB
	Wallet    *wallet.Service
	Contracts *contracts.Service
	Verifier  *auth.Verifier // nil disables token verification
	log       zerolog.Logger
}

// NewHandler creates a new handler
func NewHandler(db *db.DB, w *wallet.Service, c *contracts.Service, v *auth.Verifier, log zerolog.Logger) *Handler {
	return &Handler{DB: db, Wallet: w, Contracts: c, Verifier: v, log: log}
}

// AuthMiddleware verifies the auth provider's bearer token when a verifier
// is configured and stores the subject user id on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Verifier == nil {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, `{"error": "Authorization header required"}`, http.StatusUnauthorized)
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.Verifier.UserFromToken(tokenString)
		if err != nil {
			http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestUserID returns the authenticated user id when present, otherwise
// the explicit id from the request (the original API shape, used when
// verification is disabled).
func requestUserID(r *http.Request, explicit uuid.UUID) uuid.UUID {
	if id, ok := r.Context().Value(userIDKey).(uuid.UUID); ok {
		return id
	}
	return explicit
}

// Root reports that the API is up
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Crop Contract API is running!"})
}

// Health is the liveness endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": time.Now()})
}

// CreateUser creates a profile and wallet after auth-provider signup
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Name   string    `json:"name"`
		Role   string    `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body"))
		return
	}

	userID := requestUserID(r, req.UserID)
	if userID == uuid.Nil {
		h.writeError(w, apperr.Validation("user_id is required"))
		return
	}

	user, err := h.DB.CreateUser(r.Context(), userID, req.Name, req.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Message: "User profile created", Data: user})
}

// AddFunds credits a user's wallet
func (h *Handler) AddFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID       `json:"user_id"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body"))
		return
	}

	walletRow, err := h.Wallet.Credit(r.Context(), requestUserID(r, req.UserID), req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Funds added successfully", Data: walletRow})
}

// GetWallet returns a user's balance
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid user id"))
		return
	}

	walletRow, err := h.DB.GetWallet(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, walletRow)
}

// CreateListing creates a crop listing for a farmer
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FarmerID      uuid.UUID       `json:"farmer_id"`
		CropType      string          `json:"crop_type"`
		Quantity      int             `json:"quantity"`
		DeliveryDate  string          `json:"delivery_date"`
		ExpectedPrice decimal.Decimal `json:"expected_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body"))
		return
	}

	deliveryDate, err := time.Parse("2006-01-02", req.DeliveryDate)
	if err != nil {
		h.writeError(w, apperr.Validation("delivery_date must be YYYY-MM-DD"))
		return
	}

	farmerID := requestUserID(r, req.FarmerID)
	farmer, err := h.DB.GetUser(r.Context(), farmerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if farmer.Role != models.RoleFarmer {
		h.writeError(w, apperr.Validation("only farmers can create listings"))
		return
	}

	listing, err := h.DB.CreateListing(r.Context(), &models.Listing{
		FarmerID:      farmerID,
		CropType:      req.CropType,
		Quantity:      req.Quantity,
		DeliveryDate:  deliveryDate,
		ExpectedPrice: req.ExpectedPrice,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Message: "Listing created", Data: listing})
}

// GetListings returns all open listings
func (h *Handler) GetListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.DB.GetOpenListings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// GetFarmerListings returns all of a farmer's listings
func (h *Handler) GetFarmerListings(w http.ResponseWriter, r *http.Request) {
	farmerID, err := uuid.Parse(chi.URLParam(r, "farmer_id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid farmer id"))
		return
	}

	listings, err := h.DB.GetFarmerListings(r.Context(), farmerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// CreateProposal submits a buyer's proposal against a listing
func (h *Handler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID      uuid.UUID       `json:"buyer_id"`
		ListingID    uuid.UUID       `json:"listing_id"`
		Price        decimal.Decimal `json:"price"`
		PaymentTerms string          `json:"payment_terms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body"))
		return
	}

	buyerID := requestUserID(r, req.BuyerID)
	buyer, err := h.DB.GetUser(r.Context(), buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if buyer.Role != models.RoleBuyer {
		h.writeError(w, apperr.Validation("only buyers can submit proposals"))
		return
	}

	if _, err := h.DB.GetListing(r.Context(), req.ListingID); err != nil {
		h.writeError(w, err)
		return
	}

	proposal, err := h.DB.CreateProposal(r.Context(), &models.Proposal{
		ListingID:    req.ListingID,
		BuyerID:      buyerID,
		Price:        req.Price,
		PaymentTerms: req.PaymentTerms,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Message: "Proposal created", Data: proposal})
}

// AcceptProposal marks a proposal accepted. Sibling proposals on the same
// listing stay pending; exclusivity is enforced at contract generation.
func (h *Handler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid proposal id"))
		return
	}

	proposal, err := h.DB.UpdateProposalStatus(r.Context(), proposalID, models.ProposalAccepted)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Proposal accepted", Data: proposal})
}

// GetListingProposals returns all proposals for a listing
func (h *Handler) GetListingProposals(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid listing id"))
		return
	}

	proposals, err := h.DB.GetListingProposals(r.Context(), listingID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	writeJSON(w, http.StatusOK, proposals)
}

// GetBuyerProposals returns all proposals a buyer has submitted
func (h *Handler) GetBuyerProposals(w http.ResponseWriter, r *http.Request) {
	buyerID, err := uuid.Parse(chi.URLParam(r, "buyer_id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid buyer id"))
		return
	}

	proposals, err := h.DB.GetBuyerProposals(r.Context(), buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	writeJSON(w, http.StatusOK, proposals)
}

// GetContract returns contract details
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	contractID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid contract id"))
		return
	}

	contract, err := h.DB.GetContract(r.Context(), contractID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contract)
}

// GetUserContracts returns contracts where the user is farmer or buyer
func (h *Handler) GetUserContracts(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid user id"))
		return
	}

	contractRows, err := h.DB.GetUserContracts(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if contractRows == nil {
		contractRows = []models.Contract{}
	}
	writeJSON(w, http.StatusOK, contractRows)
}

// GenerateContract builds a contract from an accepted proposal
func (h *Handler) GenerateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProposalID uuid.UUID `json:"proposal_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body"))
		return
	}

	contract, err := h.Contracts.Generate(r.Context(), req.ProposalID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Message: "Contract generated", Data: contract})
}

// SignContract records a party's signature and settles on dual-signature
func (h *Handler) SignContract(w http.ResponseWriter, r *http.Request) {
	contractID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid contract id"))
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("invalid request body"))
		return
	}

	contract, message, err := h.Contracts.Sign(r.Context(), contractID, requestUserID(r, req.UserID))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: message, Data: contract})
}

// FarmerDashboard aggregates everything a farmer sees at a glance
func (h *Handler) FarmerDashboard(w http.ResponseWriter, r *http.Request) {
	farmerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid farmer id"))
		return
	}

	ctx := r.Context()
	user, err := h.DB.GetUser(ctx, farmerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	walletRow, err := h.DB.GetWallet(ctx, farmerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	listings, err := h.DB.GetFarmerListings(ctx, farmerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	proposals := []models.Proposal{}
	for _, listing := range listings {
		rows, err := h.DB.GetListingProposals(ctx, listing.ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		proposals = append(proposals, rows...)
	}

	contractRows, err := h.DB.GetUserContracts(ctx, farmerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Dashboard data retrieved", Data: map[string]any{
		"user":      user,
		"wallet":    walletRow,
		"listings":  listings,
		"proposals": proposals,
		"contracts": contractRows,
	}})
}

// BuyerDashboard aggregates everything a buyer sees at a glance
func (h *Handler) BuyerDashboard(w http.ResponseWriter, r *http.Request) {
	buyerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperr.Validation("invalid buyer id"))
		return
	}

	ctx := r.Context()
	user, err := h.DB.GetUser(ctx, buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	walletRow, err := h.DB.GetWallet(ctx, buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	allListings, err := h.DB.GetOpenListings(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	myProposals, err := h.DB.GetBuyerProposals(ctx, buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	contractRows, err := h.DB.GetUserContracts(ctx, buyerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Dashboard data retrieved", Data: map[string]any{
		"user":         user,
		"wallet":       walletRow,
		"all_listings": allListings,
		"my_proposals": myProposals,
		"contracts":    contractRows,
	}})
}

// writeError maps error kinds to HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInsufficientFunds):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
