package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/paper-api/internal/accounts"
	"github.com/ksred/paper-api/internal/auth"
	"github.com/ksred/paper-api/internal/database"
	"github.com/ksred/paper-api/internal/executor"
	"github.com/ksred/paper-api/internal/marketdata"
	"github.com/ksred/paper-api/internal/orders"
	"github.com/ksred/paper-api/internal/preferences"
	"github.com/ksred/paper-api/internal/transactions"
	"github.com/ksred/paper-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const jwtSecret = "paper-secret-key"

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the paper trading API server with graceful
// shutdown support. It sets up the database, all services, the order
// execution loop, and the API routes.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAppCredentials(auth.TestAppKey, auth.TestAppSecret)

	accountService := accounts.NewService(db)
	accountHandlers := accounts.NewGinHandlers(accountService)

	orderService := orders.NewService(db)
	orderHandlers := orders.NewGinHandlers(orderService)

	transactionService := transactions.NewService(db)
	transactionHandlers := transactions.NewGinHandlers(transactionService)

	preferenceService := preferences.NewService(db)
	preferenceHandlers := preferences.NewGinHandlers(preferenceService)

	// Create and start the order execution loop
	interval := 1 * time.Second
	if raw := os.Getenv("EXECUTION_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			interval = parsed
		}
	}
	processor := executor.NewProcessor(db, marketdata.NewService(), interval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, accountHandlers, orderHandlers, transactionHandlers, preferenceHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the execution loop first; an in-flight fill transaction
	// completes or rolls back before the database goes away.
	processorCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers, mirroring the
// upstream trader API paths:
// - OAuth routes: public token issuance
// - Trader routes: accounts, orders, transactions, user preference (JWT)
// - Admin routes: account lifecycle for development (should be internal-only)
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	accountHandlers *accounts.GinHandlers,
	orderHandlers *orders.GinHandlers,
	transactionHandlers *transactions.GinHandlers,
	preferenceHandlers *preferences.GinHandlers,
) {
	oauth := router.Group("/v1/oauth")
	{
		oauth.POST("/token", authHandlers.GenerateTokenHandler())
	}

	trader := router.Group("/trader/v1")
	trader.Use(middleware.JWTAuth(jwtSecret))
	{
		trader.GET("/accounts/accountNumbers", accountHandlers.GetAccountNumbersHandler())
		trader.GET("/accounts", accountHandlers.GetAccountsHandler())
		trader.GET("/accounts/:accountHash", accountHandlers.GetAccountHandler())

		trader.POST("/accounts/:accountHash/orders", orderHandlers.PlaceOrderHandler())
		trader.GET("/accounts/:accountHash/orders", orderHandlers.ListOrdersHandler())
		trader.GET("/accounts/:accountHash/orders/:orderId", orderHandlers.GetOrderHandler())
		trader.DELETE("/accounts/:accountHash/orders/:orderId", orderHandlers.CancelOrderHandler())
		trader.PUT("/accounts/:accountHash/orders/:orderId", orderHandlers.ReplaceOrderHandler())
		trader.GET("/orders", orderHandlers.ListAllOrdersHandler())

		trader.GET("/accounts/:accountHash/transactions", transactionHandlers.ListTransactionsHandler())
		trader.GET("/accounts/:accountHash/transactions/:transactionId", transactionHandlers.GetTransactionHandler())

		trader.GET("/userPreference", preferenceHandlers.GetPreferenceHandler())
		trader.PUT("/userPreference", preferenceHandlers.UpdatePreferenceHandler())
	}

	// Admin routes (should be protected by internal network)
	admin := router.Group("/admin/v1")
	admin.Use(middleware.AdminAuth(jwtSecret))
	{
		admin.POST("/accounts", accountHandlers.CreateAccountHandler())
		admin.DELETE("/accounts/:accountHash", accountHandlers.DeleteAccountHandler())
		admin.POST("/accounts/:accountHash/reset", accountHandlers.ResetAccountHandler())
	}
}
