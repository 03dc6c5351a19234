package wallet

import (
	"context"

	"github.com/kisansetu/backend/internal/apperr"
	"github.com/kisansetu/backend/internal/db"
	"github.com/kisansetu/backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service owns all balance mutation. Wallets never go negative: the store
// rejects any transfer that would, inside a single transaction.
type Service struct {
	DB  *db.DB
	log zerolog.Logger
}

// NewService creates a new wallet service
func NewService(db *db.DB, log zerolog.Logger) *Service {
	return &Service{DB: db, log: log}
}

// Credit adds funds to a user's wallet, creating it if missing.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	return s.DB.AddFunds(ctx, userID, amount)
}

// Transfer moves funds between two users' wallets.
func (s *Service) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be positive")
	}
	return s.DB.Transfer(ctx, fromUserID, toUserID, amount)
}

// SettleContractPayment pays out a fully signed contract: the price of the
// contract's proposal moves from buyer to farmer, the contract becomes
// completed and the listing fulfilled, all in one transaction. Failures are
// reported, never raised; the contract stays signed for a later retry.
func (s *Service) SettleContractPayment(ctx context.Context, contractID uuid.UUID) bool {
	if err := s.DB.SettleContract(ctx, contractID); err != nil {
		s.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("contract settlement failed")
		return false
	}
	s.log.Info().Str("contract_id", contractID.String()).Msg("contract settled")
	return true
}
