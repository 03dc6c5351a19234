package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kisansetu/backend/internal/apperr"
	"github.com/kisansetu/backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateUser inserts a user and their zero-balance wallet in one transaction.
// The user id comes from the external auth provider.
func (db *DB) CreateUser(ctx context.Context, userID uuid.UUID, name, role string) (*models.User, error) {
	if name == "" {
		return nil, apperr.Validation("name cannot be empty")
	}
	if role != models.RoleFarmer && role != models.RoleBuyer {
		return nil, apperr.Validation("role must be 'farmer' or 'buyer'")
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	user := &models.User{}
	err = tx.QueryRow(ctx,
		"INSERT INTO users (id, name, role) VALUES ($1, $2, $3) RETURNING id, name, role, created_at",
		userID, name, role).Scan(&user.ID, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.Exec(ctx, "INSERT INTO wallets (user_id, balance) VALUES ($1, 0)", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by id
func (db *DB) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, name, role, created_at FROM users WHERE id = $1",
		userID).Scan(&user.ID, &user.Name, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetWallet retrieves a user's wallet
func (db *DB) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, user_id, balance, created_at FROM wallets WHERE user_id = $1",
		userID).Scan(&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("wallet")
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// AddFunds credits a wallet in a single atomic statement, creating the
// wallet seeded with the amount if none exists.
func (db *DB) AddFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance
		RETURNING id, user_id, balance, created_at`,
		userID, amount).Scan(&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add funds: %w", err)
	}
	return wallet, nil
}

// Transfer moves funds between two wallets in one transaction. The sender
// row is locked first; the whole operation aborts if the debit would go
// negative, so no partial application is possible.
func (db *DB) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := transferTx(ctx, tx, fromUserID, toUserID, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// transferTx runs the debit/credit pair inside an existing transaction.
func transferTx(ctx context.Context, tx pgx.Tx, fromUserID, toUserID uuid.UUID, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE",
		fromUserID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("sender wallet missing: %w", apperr.ErrInconsistentState)
		}
		return fmt.Errorf("failed to lock sender wallet: %w", err)
	}

	if balance.LessThan(amount) {
		return fmt.Errorf("balance %s below %s: %w", balance, amount, apperr.ErrInsufficientFunds)
	}

	_, err = tx.Exec(ctx,
		"UPDATE wallets SET balance = balance - $1 WHERE user_id = $2",
		amount, fromUserID)
	if err != nil {
		return fmt.Errorf("failed to debit sender: %w", err)
	}

	tag, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance + $1 WHERE user_id = $2",
		amount, toUserID)
	if err != nil {
		return fmt.Errorf("failed to credit receiver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Every user gets a wallet at creation, so this should not happen.
		return fmt.Errorf("receiver wallet missing: %w", apperr.ErrInconsistentState)
	}
	return nil
}

// CreateListing inserts a new crop listing with status 'open'
func (db *DB) CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if listing.CropType == "" {
		return nil, apperr.Validation("crop type cannot be empty")
	}
	if listing.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	if !listing.ExpectedPrice.IsPositive() {
		return nil, apperr.Validation("expected price must be positive")
	}

	created := &models.Listing{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO listings (farmer_id, crop_type, quantity, delivery_date, expected_price, status)
		VALUES ($1, $2, $3, $4, $5, 'open')
		RETURNING id, farmer_id, crop_type, quantity, delivery_date, expected_price, status, created_at`,
		listing.FarmerID, listing.CropType, listing.Quantity, listing.DeliveryDate, listing.ExpectedPrice).Scan(
		&created.ID, &created.FarmerID, &created.CropType, &created.Quantity,
		&created.DeliveryDate, &created.ExpectedPrice, &created.Status, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return created, nil
}

// GetListing retrieves a listing by id
func (db *DB) GetListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	listing := &models.Listing{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, farmer_id, crop_type, quantity, delivery_date, expected_price, status, created_at
		FROM listings WHERE id = $1`,
		listingID).Scan(
		&listing.ID, &listing.FarmerID, &listing.CropType, &listing.Quantity,
		&listing.DeliveryDate, &listing.ExpectedPrice, &listing.Status, &listing.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("listing")
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// GetOpenListings retrieves all listings still open for proposals
func (db *DB) GetOpenListings(ctx context.Context) ([]models.Listing, error) {
	return db.queryListings(ctx, "WHERE status = 'open' ORDER BY created_at ASC")
}

// GetFarmerListings retrieves all listings owned by a farmer
func (db *DB) GetFarmerListings(ctx context.Context, farmerID uuid.UUID) ([]models.Listing, error) {
	return db.queryListings(ctx, "WHERE farmer_id = $1 ORDER BY created_at ASC", farmerID)
}

func (db *DB) queryListings(ctx context.Context, where string, args ...any) ([]models.Listing, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, farmer_id, crop_type, quantity, delivery_date, expected_price, status, created_at FROM listings "+where,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.FarmerID, &l.CropType, &l.Quantity,
			&l.DeliveryDate, &l.ExpectedPrice, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

// UpdateListingStatus moves a listing through open -> under_contract -> fulfilled
func (db *DB) UpdateListingStatus(ctx context.Context, listingID uuid.UUID, status string) error {
	tag, err := db.Pool.Exec(ctx, "UPDATE listings SET status = $1 WHERE id = $2", status, listingID)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("listing")
	}
	return nil
}

// CreateProposal inserts a new proposal with status 'pending'
func (db *DB) CreateProposal(ctx context.Context, proposal *models.Proposal) (*models.Proposal, error) {
	if !proposal.Price.IsPositive() {
		return nil, apperr.Validation("price must be positive")
	}

	created := &models.Proposal{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO proposals (listing_id, buyer_id, price, payment_terms, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, listing_id, buyer_id, price, COALESCE(payment_terms, ''), status, created_at`,
		proposal.ListingID, proposal.BuyerID, proposal.Price, proposal.PaymentTerms).Scan(
		&created.ID, &created.ListingID, &created.BuyerID, &created.Price,
		&created.PaymentTerms, &created.Status, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}
	return created, nil
}

// GetProposal retrieves a proposal by id
func (db *DB) GetProposal(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error) {
	proposal := &models.Proposal{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, listing_id, buyer_id, price, COALESCE(payment_terms, ''), status, created_at
		FROM proposals WHERE id = $1`,
		proposalID).Scan(
		&proposal.ID, &proposal.ListingID, &proposal.BuyerID, &proposal.Price,
		&proposal.PaymentTerms, &proposal.Status, &proposal.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("proposal")
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

// GetListingProposals retrieves all proposals made against a listing
func (db *DB) GetListingProposals(ctx context.Context, listingID uuid.UUID) ([]models.Proposal, error) {
	return db.queryProposals(ctx, "WHERE listing_id = $1 ORDER BY created_at ASC", listingID)
}

// GetBuyerProposals retrieves all proposals submitted by a buyer
func (db *DB) GetBuyerProposals(ctx context.Context, buyerID uuid.UUID) ([]models.Proposal, error) {
	return db.queryProposals(ctx, "WHERE buyer_id = $1 ORDER BY created_at ASC", buyerID)
}

func (db *DB) queryProposals(ctx context.Context, where string, args ...any) ([]models.Proposal, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, listing_id, buyer_id, price, COALESCE(payment_terms, ''), status, created_at FROM proposals "+where,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		var p models.Proposal
		if err := rows.Scan(&p.ID, &p.ListingID, &p.BuyerID, &p.Price,
			&p.PaymentTerms, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return proposals, nil
}

// UpdateProposalStatus updates a proposal's status
func (db *DB) UpdateProposalStatus(ctx context.Context, proposalID uuid.UUID, status string) (*models.Proposal, error) {
	proposal := &models.Proposal{}
	err := db.Pool.QueryRow(ctx, `
		UPDATE proposals SET status = $1 WHERE id = $2
		RETURNING id, listing_id, buyer_id, price, COALESCE(payment_terms, ''), status, created_at`,
		status, proposalID).Scan(
		&proposal.ID, &proposal.ListingID, &proposal.BuyerID, &proposal.Price,
		&proposal.PaymentTerms, &proposal.Status, &proposal.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("proposal")
		}
		return nil, fmt.Errorf("failed to update proposal status: %w", err)
	}
	return proposal, nil
}

// CreateContract inserts a drafted contract with an empty signer set
func (db *DB) CreateContract(ctx context.Context, contract *models.Contract) (*models.Contract, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO contracts (listing_id, proposal_id, farmer_id, buyer_id, contract_text, pdf_url, status, signed_by)
		VALUES ($1, $2, $3, $4, $5, $6, 'drafted', '[]')
		RETURNING id, listing_id, proposal_id, farmer_id, buyer_id, contract_text, pdf_url, status, signed_by, created_at`,
		contract.ListingID, contract.ProposalID, contract.FarmerID, contract.BuyerID,
		contract.ContractText, contract.PDFURL)

	created, err := scanContract(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}
	return created, nil
}

// GetContract retrieves a contract by id
func (db *DB) GetContract(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, listing_id, proposal_id, farmer_id, buyer_id, contract_text, pdf_url, status, signed_by, created_at
		FROM contracts WHERE id = $1`,
		contractID)

	contract, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("contract")
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return contract, nil
}

// GetUserContracts retrieves contracts where the user is farmer or buyer
func (db *DB) GetUserContracts(ctx context.Context, userID uuid.UUID) ([]models.Contract, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, listing_id, proposal_id, farmer_id, buyer_id, contract_text, pdf_url, status, signed_by, created_at
		FROM contracts WHERE farmer_id = $1 OR buyer_id = $1
		ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contracts: %w", err)
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, *contract)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contracts, nil
}

// SignContract appends a signature inside a transaction. The contract row is
// locked for the read-modify-write of the signer set, so concurrent signs
// cannot lose an update. Signing is idempotent per user. Only the farmer or
// buyer of record may sign. The returned flag is true only when this call
// moved the contract from drafted to signed.
func (db *DB) SignContract(ctx context.Context, contractID, userID uuid.UUID) (*models.Contract, bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, listing_id, proposal_id, farmer_id, buyer_id, contract_text, pdf_url, status, signed_by, created_at
		FROM contracts WHERE id = $1 FOR UPDATE`,
		contractID)
	contract, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, apperr.NotFound("contract")
		}
		return nil, false, fmt.Errorf("failed to get contract: %w", err)
	}

	if userID != contract.FarmerID && userID != contract.BuyerID {
		return nil, false, apperr.Validation("user is not a party to this contract")
	}

	already := false
	for _, id := range contract.SignedBy {
		if id == userID {
			already = true
			break
		}
	}
	if already {
		// Idempotent: no state change, no settlement re-trigger.
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return contract, false, nil
	}

	contract.SignedBy = append(contract.SignedBy, userID)
	becameSigned := false
	if contract.FullySigned() && contract.Status == models.ContractDrafted {
		contract.Status = models.ContractSigned
		becameSigned = true
	}

	signedBy, err := json.Marshal(contract.SignedBy)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode signer set: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE contracts SET signed_by = $1, status = $2 WHERE id = $3",
		string(signedBy), contract.Status, contractID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update contract: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return contract, becameSigned, nil
}

// SettleContract runs the full settlement in one transaction: verify the
// contract is signed, read the price from the contract's own proposal,
// transfer buyer -> farmer, mark the contract completed and the listing
// fulfilled. Either everything commits or nothing does.
func (db *DB) SettleContract(ctx context.Context, contractID uuid.UUID) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, listing_id, proposal_id, farmer_id, buyer_id, contract_text, pdf_url, status, signed_by, created_at
		FROM contracts WHERE id = $1 FOR UPDATE`,
		contractID)
	contract, err := scanContract(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperr.NotFound("contract")
		}
		return fmt.Errorf("failed to get contract: %w", err)
	}

	if contract.Status != models.ContractSigned {
		return apperr.Validation("contract is %s, not signed", contract.Status)
	}

	var price decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT price FROM proposals WHERE id = $1", contract.ProposalID).Scan(&price)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("contract proposal missing: %w", apperr.ErrInconsistentState)
		}
		return fmt.Errorf("failed to get proposal price: %w", err)
	}

	if err := transferTx(ctx, tx, contract.BuyerID, contract.FarmerID, price); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, "UPDATE contracts SET status = 'completed' WHERE id = $1", contractID)
	if err != nil {
		return fmt.Errorf("failed to complete contract: %w", err)
	}

	_, err = tx.Exec(ctx, "UPDATE listings SET status = 'fulfilled' WHERE id = $1", contract.ListingID)
	if err != nil {
		return fmt.Errorf("failed to fulfill listing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*models.Contract, error) {
	contract := &models.Contract{}
	var signedBy string
	err := row.Scan(&contract.ID, &contract.ListingID, &contract.ProposalID,
		&contract.FarmerID, &contract.BuyerID, &contract.ContractText,
		&contract.PDFURL, &contract.Status, &signedBy, &contract.CreatedAt)
	if err != nil {
		return nil, err
	}
	contract.SignedBy = []uuid.UUID{}
	if signedBy != "" && signedBy != "[]" {
		if err := json.Unmarshal([]byte(signedBy), &contract.SignedBy); err != nil {
			return nil, fmt.Errorf("failed to decode signer set: %w", err)
		}
	}
	return contract, nil
}
