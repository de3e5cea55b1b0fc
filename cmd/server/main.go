// Command fibox-server starts the fibox HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/config"
	pkgcrypto "github.com/mehtaViraj/hackweek2-fibox-backend/internal/crypto"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/migrate"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/plaid"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/repository/postgres"
	httpserver "github.com/mehtaViraj/hackweek2-fibox-backend/internal/server/http"
	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and serves the API until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("plaidEnv", cfg.PlaidEnv),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ver, err := migrate.Up(ctx, cfg.DSN, logger)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema ready", zap.Int64("version", ver))

	db, err := postgres.New(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	itemRepo := postgres.NewItemRepo(db)

	plaidClient, err := plaid.NewClient(plaid.Config{
		ClientID: cfg.PlaidClientID,
		Secret:   cfg.PlaidSecret,
		Env:      cfg.PlaidEnv,
		BaseURL:  cfg.PlaidBaseURL,
		Timeout:  cfg.PlaidTimeout,
	})
	if err != nil {
		logger.Fatal("plaid client", zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(userRepo, pkgcrypto.NewHasher(pkgcrypto.DefaultParams), []byte(cfg.SessionKey))
	registrySvc := service.NewRegistryService(itemRepo, plaidClient, logger)
	aggSvc := service.NewAggregator(registrySvc, plaidClient, logger, service.AggregatorOptions{
		CallTimeout:  cfg.CallTimeout,
		PageSize:     cfg.TxPageSize,
		LookbackDays: cfg.TxLookbackDays,
	})

	if cfg.ImportOnBoot {
		if _, err := registrySvc.ImportLegacy(ctx); err != nil {
			logger.Error("legacy import", zap.Error(err))
		}
	}

	app := httpserver.New(authSvc, registrySvc, aggSvc, logger).WithPing(db.Ping)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// the balance fan-out may wait a full provider-call-timeout
		WriteTimeout: cfg.CallTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warn("graceful shutdown timed out", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}
