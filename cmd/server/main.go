package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rongwang/marketplace-server/internal/api"
	"github.com/rongwang/marketplace-server/internal/auth"
	"github.com/rongwang/marketplace-server/internal/config"
	"github.com/rongwang/marketplace-server/internal/repository"
	"github.com/rongwang/marketplace-server/internal/service"
	"github.com/rongwang/marketplace-server/internal/utils"
)

func main() {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Error("failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewSQLRepository(db, cfg.Ledger.Mode())

	// Create service
	codec := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	external := auth.NewExternalVerifier(cfg.Auth.ExternalSecret, cfg.Auth.ExternalIssuer)
	svc := service.NewDefaultService(repo, codec, external, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Seed {
		if err := svc.SeedDevelopmentData(ctx); err != nil {
			logger.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Create API handler
	handler := api.NewHandler(svc, auth.NewResolver(codec), db, logger)

	// Set up Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server",
			"addr", server.Addr,
			"driver", cfg.Database.Driver,
			"stock_mode", cfg.Ledger.StockMode,
			"token_ttl", cfg.Auth.TokenTTL.String(),
			"external_login", external.Enabled(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
