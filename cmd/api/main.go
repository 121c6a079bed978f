package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/baharkarakas/charity-faceoff/internal/api"
	"github.com/baharkarakas/charity-faceoff/internal/auth"
	"github.com/baharkarakas/charity-faceoff/internal/config"
	"github.com/baharkarakas/charity-faceoff/internal/db"
	"github.com/baharkarakas/charity-faceoff/internal/feed"
	"github.com/baharkarakas/charity-faceoff/internal/logger"
	"github.com/baharkarakas/charity-faceoff/internal/metrics"
	"github.com/baharkarakas/charity-faceoff/internal/models"
	"github.com/baharkarakas/charity-faceoff/internal/payments"
	repo "github.com/baharkarakas/charity-faceoff/internal/repository"
	"github.com/baharkarakas/charity-faceoff/internal/repository/postgres"
	"github.com/baharkarakas/charity-faceoff/internal/repository/sqlite"
	"github.com/baharkarakas/charity-faceoff/internal/services"
	"github.com/baharkarakas/charity-faceoff/internal/telemetry"
	"github.com/baharkarakas/charity-faceoff/internal/webhook"
	"github.com/baharkarakas/charity-faceoff/internal/worker"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	fatal, degraded := cfg.Missing()
	if len(fatal) > 0 {
		log.Error("refusing to start", "err", &services.MisconfigurationError{Missing: fatal})
		os.Exit(1)
	}
	if len(degraded) > 0 {
		log.Warn("running degraded, affected endpoints will answer 500", "missing", degraded)
	}
	if cfg.AdminPasswordHash != "" {
		if err := auth.CheckHash(cfg.AdminPasswordHash); err != nil {
			log.Warn("ADMIN_PASSWORD_HASH is unusable, admin login disabled", "err", err)
		}
	}
	log.Info("config loaded",
		"env", cfg.Env,
		"store", cfg.StoreDriver,
		"webhook_secret_len", len(cfg.WebhookSecret),
		"stripe_key_len", len(cfg.StripeSecretKey),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "charity-faceoff", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Warn("tracing disabled", "err", err)
	}

	metrics.Init()

	var (
		repos  repo.Repositories
		pgPool *pgxpool.Pool
		sqlDB  *sql.DB
	)
	switch cfg.StoreDriver {
	case "sqlite":
		sqlDB, err = db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Error("sqlite open", "err", err)
			os.Exit(1)
		}
		defer sqlDB.Close()
		repos = sqlite.NewRepositories(sqlDB)
	default:
		pgPool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pgPool); err != nil {
				log.Error("migrations", "err", err)
				os.Exit(1)
			}
		}
		repos = postgres.NewRepositories(pgPool)
	}

	if cfg.SeedTeams {
		roster, err := loadRoster(cfg.SeedFile)
		if err != nil {
			log.Error("load roster", "file", cfg.SeedFile, "err", err)
			os.Exit(1)
		}
		if err := services.SeedTeams(ctx, repos.Ledger, roster); err != nil {
			log.Error("seed teams", "err", err)
			os.Exit(1)
		}
	}

	wp := worker.NewPool(cfg.WorkerCount, cfg.WorkerQueue)
	defer wp.Stop()

	totalsSvc := services.NewTotalsService(repos.Ledger)
	hub := feed.NewHub(totalsSvc)
	settlements := services.NewSettlementService(repos.Ledger, hub)
	reconciler := services.NewReconciler(
		webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance),
		settlements,
		repos.WebhookEvents,
		repos.Issues,
		wp,
		services.ReconcileOptions{
			Currency:        cfg.Currency,
			PrecheckTimeout: cfg.PrecheckTimeout,
			ApplyTimeout:    cfg.ApplyTimeout,
		},
	)

	var provider payments.Provider
	if cfg.StripeSecretKey != "" {
		provider = payments.NewStripeProvider(cfg.StripeSecretKey)
	}

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	r := api.NewRouter(api.RouterDeps{
		Cfg:         cfg,
		TM:          tm,
		Reconciler:  reconciler,
		Checkout:    services.NewCheckoutService(repos.Ledger, provider, cfg.CheckoutBaseURL, cfg.Currency),
		Totals:      totalsSvc,
		Admin:       services.NewAdminService(repos.Ledger, repos.Issues, repos.AuditLogs, hub),
		Diagnostics: services.NewDiagnosticsService(repos, cfg.StripeSecretKey, cfg.WebhookSecret),
		Auth:        services.NewAuthService(tm, cfg.AdminPasswordHash),
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if pgPool != nil {
		g.Go(func() error {
			postgres.ListenTotals(gctx, pgPool, hub.Refresh)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if terr := shutdownTracing(shutdownCtx); terr != nil {
			log.Warn("tracing shutdown", "err", terr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server", "err", err)
		os.Exit(1)
	}
}

func loadRoster(path string) ([]models.Team, error) {
	if path == "" {
		return services.DefaultRoster(time.Now().UTC()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return services.LoadRoster(f)
}
