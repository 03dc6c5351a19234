package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kisansetu/backend/internal/api"
	"github.com/kisansetu/backend/internal/auth"
	"github.com/kisansetu/backend/internal/config"
	"github.com/kisansetu/backend/internal/contracts"
	"github.com/kisansetu/backend/internal/db"
	"github.com/kisansetu/backend/internal/genai"
	"github.com/kisansetu/backend/internal/models"
	"github.com/kisansetu/backend/internal/pdf"
	"github.com/kisansetu/backend/internal/storage"
	"github.com/kisansetu/backend/internal/wallet"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var (
	clients   = make(map[*wsClient]bool)
	clientsMu sync.RWMutex
)

// broadcastListings pushes the current open listings to all connected clients
func broadcastListings(database *db.DB, log zerolog.Logger) {
	listings, err := database.GetOpenListings(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("failed to load open listings")
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}

	data, err := json.Marshal(struct {
		OpenListings []models.Listing `json:"open_listings"`
	}{OpenListings: listings})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal listings")
		return
	}

	clientsMu.RLock()
	defer clientsMu.RUnlock()
	for client := range clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			log.Debug().Err(err).Msg("dropping websocket client")
			go removeClient(client)
		}
	}
}

func removeClient(client *wsClient) {
	clientsMu.Lock()
	delete(clients, client)
	clientsMu.Unlock()
	client.conn.Close()
}

func handleWebSocket(database *db.DB, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := &wsClient{conn: conn}
		clientsMu.Lock()
		clients[client] = true
		clientsMu.Unlock()

		// Send the current listings immediately
		broadcastListings(database, log)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				removeClient(client)
				break
			}
		}
	}
}

func main() {
	cfg := config.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx := context.Background()
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(ctx)

	walletService := wallet.NewService(database, log)
	generator := genai.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, log)
	renderer := pdf.NewRenderer()
	uploader := storage.NewClient(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket, log)
	contractService := contracts.NewService(database, generator, renderer, uploader, walletService, log)

	var verifier *auth.Verifier
	if cfg.AuthJWTSecret != "" {
		verifier = auth.NewVerifier(cfg.AuthJWTSecret)
	}

	handler := api.NewHandler(database, walletService, contractService, verifier, log)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/", handler.Root)
	r.Get("/health", handler.Health)
	r.Get("/ws", handleWebSocket(database, log))

	// API endpoints; token verification applies when configured
	r.Group(func(r chi.Router) {
		r.Use(handler.AuthMiddleware)

		r.Post("/users", handler.CreateUser)

		r.Post("/wallet/add-funds", handler.AddFunds)
		r.Get("/wallet/{user_id}", handler.GetWallet)

		r.Post("/listings", handler.CreateListing)
		r.Get("/listings", handler.GetListings)
		r.Get("/listings/farmer/{farmer_id}", handler.GetFarmerListings)

		r.Post("/proposals", handler.CreateProposal)
		r.Put("/proposals/{id}/accept", handler.AcceptProposal)
		r.Get("/proposals/listing/{id}", handler.GetListingProposals)
		r.Get("/proposals/buyer/{buyer_id}", handler.GetBuyerProposals)

		r.Get("/contracts/{id}", handler.GetContract)
		r.Get("/contracts/user/{user_id}", handler.GetUserContracts)
		r.Post("/contracts/generate", handler.GenerateContract)
		r.Post("/contracts/{id}/sign", handler.SignContract)

		r.Get("/dashboard/farmer/{id}", handler.FarmerDashboard)
		r.Get("/dashboard/buyer/{id}", handler.BuyerDashboard)
	})

	// Push open listings to websocket clients until shutdown
	broadcastCtx, stopBroadcast := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-broadcastCtx.Done():
				return
			case <-ticker.C:
				broadcastListings(database, log)
			}
		}
	}()

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stop
	log.Info().Msg("shutting down")
	stopBroadcast()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
