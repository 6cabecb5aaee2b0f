package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blertbank/backend/docs"
	"github.com/blertbank/backend/internal/audit"
	"github.com/blertbank/backend/internal/config"
	"github.com/blertbank/backend/internal/database"
	"github.com/blertbank/backend/internal/events"
	"github.com/blertbank/backend/internal/handlers"
	mW "github.com/blertbank/backend/internal/middleware"
	"github.com/blertbank/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Ledger API
// @version 1.0
// @description Double-entry ledger for posting balanced transactions between accounts
// @BasePath /
// @securityDefinitions.apikey ServiceToken
// @in header
// @name X-Service-Token

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	policy, err := cfg.Ledger.BalancePolicy()
	if err != nil {
		logger.Fatalf("Invalid balance policy: %v", err)
	}
	systemAccounts, err := cfg.Ledger.SystemAccountKinds()
	if err != nil {
		logger.Fatalf("Invalid system accounts: %v", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	db, err := database.InitDB(startupCtx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(startupCtx, db, systemAccounts, logger); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	redisClient := database.InitRedis(startupCtx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Kafka writer")
			}
		}()
		publisher = kafkaPublisher
	}

	// Initialize services
	resolver := services.NewIdempotencyResolver(db, redisClient, cfg.Ledger.IdempotencyCacheTTL, logger)
	ledgerService := services.NewLedgerService(db, resolver, logger, services.LedgerOptions{
		Policy:      policy,
		LockTimeout: cfg.Ledger.LockTimeout,
		Publisher:   publisher,
		Audit:       audit.NewLogger(logger),
	})
	accountService := services.NewAccountService(db, logger)
	reconciliationService := services.NewReconciliationService(db, logger)

	transactionHandler := handlers.NewTransactionHandler(ledgerService, accountService, logger)
	accountHandler := handlers.NewAccountHandler(accountService, logger)
	serviceAuth := mW.NewServiceAuth(cfg.Auth.ServiceToken, cfg.Auth.JWTSecret)

	scheduler := cron.New()
	if cfg.Reconciliation.Enabled {
		if _, err := reconciliationService.Schedule(scheduler, cfg.Reconciliation.Schedule, cfg.Reconciliation.Timeout); err != nil {
			logger.Fatalf("Invalid reconciliation schedule %q: %v", cfg.Reconciliation.Schedule, err)
		}
		scheduler.Start()
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mW.HeaderServiceToken, mW.HeaderServiceName},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		services.SendErrorResponse(w, services.CodeNotFound, "Route not found", http.StatusNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		services.SendErrorResponse(w, services.CodeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed, nil)
	})

	// Swagger documentation
	docs.SwaggerInfo.Host = cfg.Server.PublicHost
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Service routes
	r.Group(func(r chi.Router) {
		r.Use(serviceAuth.Middleware)

		r.Post("/transactions", transactionHandler.CreateTransaction)

		r.Post("/accounts", accountHandler.CreateAccount)
		r.Get("/accounts/user/{userId}", accountHandler.GetUserAccount)
		r.Get("/accounts/system/{name}", accountHandler.GetSystemAccount)
		r.Get("/accounts/{accountId}", accountHandler.GetAccount)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
