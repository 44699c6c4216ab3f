package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatewaylabs/payment-gateway/internal/auth"
	"github.com/gatewaylabs/payment-gateway/internal/config"
	"github.com/gatewaylabs/payment-gateway/internal/domain"
	"github.com/gatewaylabs/payment-gateway/internal/handler"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
	"github.com/gatewaylabs/payment-gateway/internal/middleware"
	"github.com/gatewaylabs/payment-gateway/internal/repository"
	"github.com/gatewaylabs/payment-gateway/internal/service"
	"github.com/gatewaylabs/payment-gateway/internal/service/ledger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("payment-gateway", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minAmount, err := domain.NewMoney(cfg.MinAmount)
	if err != nil {
		slog.Error("invalid MIN_AMOUNT", "error", err)
		os.Exit(1)
	}
	maxAmount, err := domain.NewMoney(cfg.MaxAmount)
	if err != nil {
		slog.Error("invalid MAX_AMOUNT", "error", err)
		os.Exit(1)
	}
	bounds := handler.AmountBounds{Min: minAmount, Max: maxAmount}

	users := repository.NewUserRepository(db)
	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	ledgerSvc := ledger.NewService(accounts, transactions, users, db)
	querySvc := service.NewQueryService(accounts, users, transactions)
	registrationSvc := service.NewRegistrationService(users, accounts, db)

	tokens := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiryH)*time.Hour)
	authHandler := handler.NewAuthHandler(registrationSvc, users, tokens)
	accountHandler := handler.NewAccountHandler(ledgerSvc, querySvc, bounds)
	paymentHandler := handler.NewPaymentHandler(ledgerSvc, bounds)
	transactionHandler := handler.NewTransactionHandler(querySvc)
	healthHandler := handler.NewHealthHandler(db)

	authn := middleware.Auth(tokens)
	idem := middleware.Idempotency(idempotency)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Check)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /api/v1/account/balance", authn(http.HandlerFunc(accountHandler.Balance)))
	mux.Handle("POST /api/v1/account/deposit", authn(http.HandlerFunc(accountHandler.Deposit)))
	mux.Handle("POST /api/v1/payments", authn(idem(http.HandlerFunc(paymentHandler.Create))))
	mux.Handle("GET /api/v1/transactions", authn(http.HandlerFunc(transactionHandler.List)))

	root := middleware.RequestID(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				n, err := idempotency.PurgeExpired(sweepCtx)
				if err != nil {
					slog.Error("idempotency cache sweep failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("idempotency cache swept", "removed", n)
				}
			}
		}
	}()

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
