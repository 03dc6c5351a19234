package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kisansetu/backend/internal/config"
	"github.com/kisansetu/backend/internal/db"
	"github.com/kisansetu/backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seed the database with a farmer, a buyer and an open listing with a
// pending proposal, ready to walk through the contract flow by hand.
func main() {
	ctx := context.Background()

	cfg := config.Load()
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(ctx)

	var count int
	err = database.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		log.Fatalf("Failed to check users: %v", err)
	}
	if count > 0 {
		fmt.Printf("Database already has %d users. No need to seed.\n", count)
		os.Exit(0)
	}

	farmerID := uuid.New()
	buyerID := uuid.New()

	farmer, err := database.CreateUser(ctx, farmerID, "Ramesh Patel", models.RoleFarmer)
	if err != nil {
		log.Fatalf("Failed to create farmer: %v", err)
	}

	buyer, err := database.CreateUser(ctx, buyerID, "Anita Rao", models.RoleBuyer)
	if err != nil {
		log.Fatalf("Failed to create buyer: %v", err)
	}

	// Buyer starts with funds to cover the proposal below
	if _, err := database.AddFunds(ctx, buyerID, decimal.NewFromInt(500)); err != nil {
		log.Fatalf("Failed to fund buyer wallet: %v", err)
	}

	listing, err := database.CreateListing(ctx, &models.Listing{
		FarmerID:      farmerID,
		CropType:      "wheat",
		Quantity:      100,
		DeliveryDate:  time.Now().AddDate(0, 1, 0),
		ExpectedPrice: decimal.NewFromInt(250),
	})
	if err != nil {
		log.Fatalf("Failed to create listing: %v", err)
	}

	proposal, err := database.CreateProposal(ctx, &models.Proposal{
		ListingID:    listing.ID,
		BuyerID:      buyerID,
		Price:        decimal.NewFromInt(200),
		PaymentTerms: "Payment on delivery",
	})
	if err != nil {
		log.Fatalf("Failed to create proposal: %v", err)
	}

	fmt.Println("Successfully seeded the database!")
	fmt.Printf("  farmer:   %s (%s)\n", farmer.Name, farmer.ID)
	fmt.Printf("  buyer:    %s (%s)\n", buyer.Name, buyer.ID)
	fmt.Printf("  listing:  %s (%s)\n", listing.CropType, listing.ID)
	fmt.Printf("  proposal: %s (%s)\n", proposal.Price.StringFixed(2), proposal.ID)
}
