/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Lodgeline rent engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (.env supported)
  2. Initialize SQLite store
  3. Wire the payment-link issuer to the Razorpay gateway
  4. Create API handler and router
  5. Start the overdue sweep
  6. Start server with graceful shutdown

CONFIGURATION (environment variables):
  LISTEN_ADDR               HTTP listen address (default: :8080)
  DB_PATH                   SQLite database path (default: rent.db)
                            Use ":memory:" for an in-memory database
  GATEWAY_KEY_ID            Razorpay key ID
  GATEWAY_KEY_SECRET        Razorpay key secret
  CURRENCY                  ISO currency code (default: USD)
  GATEWAY_TIMEOUT           Gateway acknowledgement bound (default: 10s)
  PAYMENT_LINK_TTL          How long issued links stay chargeable (default: 24h)
  LINK_REQUESTS_PER_MINUTE  Payment-link creation cap (default: 60)
  OVERDUE_SWEEP_INTERVAL    Sweep cadence, 0 disables (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the overdue sweep
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lodgeline/rent-engine/api"
	"github.com/lodgeline/rent-engine/checkout"
	"github.com/lodgeline/rent-engine/config"
	"github.com/lodgeline/rent-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Payment-link issuer over the hosted checkout gateway. The store
	// doubles as the link store so idempotency survives restarts.
	gateway := checkout.NewRazorpayGateway(cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.Currency)
	issuer := checkout.NewIssuer(gateway, store)
	issuer.LinkTTL = cfg.LinkTTL
	issuer.GatewayTimeout = cfg.GatewayTimeout

	// Initialize handler and router
	handler := api.NewHandler(store, issuer, cfg.LinkRequestsPerMinute)
	router := api.NewRouter(handler)

	// Overdue sweep
	sweep := api.NewOverdueSweeper(store)
	if cfg.SweepInterval > 0 {
		sweep.CheckInterval = cfg.SweepInterval
	} else {
		sweep.Enabled = false
	}
	sweep.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Rent engine listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	sweep.Stop()
	log.Println("Server stopped")
}
