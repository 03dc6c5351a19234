package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User roles. A user is either a farmer or a buyer, fixed at creation.
const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
)

// Listing statuses.
const (
	ListingOpen          = "open"
	ListingUnderContract = "under_contract"
	ListingFulfilled     = "fulfilled"
)

// Proposal statuses.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
)

// Contract statuses.
const (
	ContractDrafted   = "drafted"
	ContractSigned    = "signed"
	ContractCompleted = "completed"
)

// User represents a marketplace participant. The id is issued by the
// external auth provider at signup.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"` // "farmer" or "buyer"
	CreatedAt time.Time `json:"created_at"`
}

// Wallet holds a user's balance. One wallet per user, created with the user.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"` // NUMERIC(14,2) in DB
	CreatedAt time.Time       `json:"created_at"`
}

// Listing is a farmer's offer to sell a crop.
type Listing struct {
	ID            uuid.UUID       `json:"id"`
	FarmerID      uuid.UUID       `json:"farmer_id"`
	CropType      string          `json:"crop_type"`
	Quantity      int             `json:"quantity"`
	DeliveryDate  time.Time       `json:"delivery_date"`
	ExpectedPrice decimal.Decimal `json:"expected_price"`
	Status        string          `json:"status"` // "open", "under_contract", "fulfilled"
	CreatedAt     time.Time       `json:"created_at"`
}

// Proposal is a buyer's offer against a listing.
type Proposal struct {
	ID           uuid.UUID       `json:"id"`
	ListingID    uuid.UUID       `json:"listing_id"`
	BuyerID      uuid.UUID       `json:"buyer_id"`
	Price        decimal.Decimal `json:"price"`
	PaymentTerms string          `json:"payment_terms,omitempty"`
	Status       string          `json:"status"` // "pending", "accepted"
	CreatedAt    time.Time       `json:"created_at"`
}

// Contract is the binding document generated from an accepted proposal.
// ProposalID pins the proposal whose price settles the contract.
// SignedBy holds at most the farmer and buyer ids, in signing order.
type Contract struct {
	ID           uuid.UUID   `json:"id"`
	ListingID    uuid.UUID   `json:"listing_id"`
	ProposalID   uuid.UUID   `json:"proposal_id"`
	FarmerID     uuid.UUID   `json:"farmer_id"`
	BuyerID      uuid.UUID   `json:"buyer_id"`
	ContractText string      `json:"contract_text"`
	PDFURL       string      `json:"pdf_url"`
	Status       string      `json:"status"` // "drafted", "signed", "completed"
	SignedBy     []uuid.UUID `json:"signed_by"`
	CreatedAt    time.Time   `json:"created_at"`
}

// FullySigned reports whether both parties have signed.
func (c *Contract) FullySigned() bool {
	return len(c.SignedBy) == 2
}
