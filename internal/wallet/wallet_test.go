package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/kisansetu/backend/internal/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Validation happens before any store access, so these run without a DB.
// Balance behavior is covered against a real database in internal/db and
// the full settlement path in internal/contracts.

func TestService_Credit_RejectsNonPositive(t *testing.T) {
	service := NewService(nil, zerolog.Nop())

	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{name: "Zero", amount: decimal.Zero},
		{name: "Negative", amount: decimal.NewFromInt(-10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Credit(context.Background(), uuid.New(), tt.amount)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_Transfer_RejectsNonPositive(t *testing.T) {
	service := NewService(nil, zerolog.Nop())

	err := service.Transfer(context.Background(), uuid.New(), uuid.New(), decimal.Zero)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
