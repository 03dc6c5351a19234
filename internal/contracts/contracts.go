// Package contracts drives a contract through drafted -> signed ->
// completed, consuming the text generator, document renderer, artifact
// uploader and wallet ledger.
package contracts

import (
	"context"
	"os"

	"github.com/kisansetu/backend/internal/apperr"
	"github.com/kisansetu/backend/internal/db"
	"github.com/kisansetu/backend/internal/genai"
	"github.com/kisansetu/backend/internal/models"
	"github.com/kisansetu/backend/internal/wallet"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome messages returned alongside a signed contract.
const (
	MsgSignedAndPaid = "Contract signed and payment processed"
	MsgSignedNotPaid = "Contract signed but payment failed"
	MsgAwaitingParty = "Contract signed, waiting for other party"
	MsgAlreadySigned = "Contract already fully signed"
)

// DocumentRenderer materializes contract text as a local file.
type DocumentRenderer interface {
	Render(contractText string) (string, error)
}

// ArtifactUploader publishes a local file and returns a reference URL.
// Implementations degrade to a placeholder URL instead of failing.
type ArtifactUploader interface {
	Upload(ctx context.Context, path string) string
}

// Service orchestrates the contract lifecycle.
type Service struct {
	DB        *db.DB
	Generator genai.Generator
	Renderer  DocumentRenderer
	Uploader  ArtifactUploader
	Wallet    *wallet.Service
	log       zerolog.Logger
}

// NewService creates a new contract lifecycle service
func NewService(db *db.DB, gen genai.Generator, renderer DocumentRenderer, uploader ArtifactUploader, w *wallet.Service, log zerolog.Logger) *Service {
	return &Service{DB: db, Generator: gen, Renderer: renderer, Uploader: uploader, Wallet: w, log: log}
}

// Generate builds a contract from an accepted proposal: fetch the records,
// generate the prose, render and publish the document, persist the drafted
// contract and move the listing under contract. The local document file is
// removed whether or not the upload succeeded.
func (s *Service) Generate(ctx context.Context, proposalID uuid.UUID) (*models.Contract, error) {
	proposal, err := s.DB.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalAccepted {
		return nil, apperr.Validation("proposal is %s, not accepted", proposal.Status)
	}

	listing, err := s.DB.GetListing(ctx, proposal.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingOpen {
		return nil, apperr.Validation("listing is %s, not open", listing.Status)
	}

	farmer, err := s.DB.GetUser(ctx, listing.FarmerID)
	if err != nil {
		return nil, err
	}
	buyer, err := s.DB.GetUser(ctx, proposal.BuyerID)
	if err != nil {
		return nil, err
	}

	// Never fails: falls back to the deterministic template internally.
	contractText := s.Generator.GenerateContract(ctx, farmer, buyer, listing, proposal)

	path, err := s.Renderer.Render(contractText)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	// Best-effort: a failed upload yields a placeholder URL.
	pdfURL := s.Uploader.Upload(ctx, path)

	contract, err := s.DB.CreateContract(ctx, &models.Contract{
		ListingID:    listing.ID,
		ProposalID:   proposal.ID,
		FarmerID:     listing.FarmerID,
		BuyerID:      proposal.BuyerID,
		ContractText: contractText,
		PDFURL:       pdfURL,
	})
	if err != nil {
		return nil, err
	}

	if err := s.DB.UpdateListingStatus(ctx, listing.ID, models.ListingUnderContract); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("proposal_id", proposal.ID.String()).
		Msg("contract generated")
	return contract, nil
}

// Sign records a signature. When this call collects the second signature
// the contract becomes signed and settlement runs; a settlement failure is
// reported in the message but never undoes the signature. Re-issuing a
// sign request against a contract stuck in signed retries the settlement;
// a completed contract never pays twice. Signing twice with the same user
// changes nothing.
func (s *Service) Sign(ctx context.Context, contractID, userID uuid.UUID) (*models.Contract, string, error) {
	contract, becameSigned, err := s.DB.SignContract(ctx, contractID, userID)
	if err != nil {
		return nil, "", err
	}

	if becameSigned || contract.Status == models.ContractSigned {
		return s.settle(ctx, contract)
	}

	if contract.FullySigned() {
		return contract, MsgAlreadySigned, nil
	}
	return contract, MsgAwaitingParty, nil
}

// settle runs the payment and reloads the contract so the caller sees the
// completed status. Settlement re-verifies the signed status inside its
// transaction, so it can never run twice for one contract.
func (s *Service) settle(ctx context.Context, contract *models.Contract) (*models.Contract, string, error) {
	if !s.Wallet.SettleContractPayment(ctx, contract.ID) {
		return contract, MsgSignedNotPaid, nil
	}

	settled, err := s.DB.GetContract(ctx, contract.ID)
	if err != nil {
		s.log.Error().Err(err).Str("contract_id", contract.ID.String()).Msg("failed to reload settled contract")
		return contract, MsgSignedAndPaid, nil
	}
	return settled, MsgSignedAndPaid, nil
}
