package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/api"
	"github.com/xenking/salesdesk/internal/domain/auth"
	"github.com/xenking/salesdesk/internal/domain/sale"
	"github.com/xenking/salesdesk/internal/storage/postgres"
	"github.com/xenking/salesdesk/pkg/health"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

// RunSalesAPI creates all dependencies of the sales API, starts the HTTP
// server, and handles graceful shutdown.
func RunSalesAPI(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *SalesAPIConfig) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	srv := newSalesAPIServer(ctx, cfg, pool)
	return srv.run(ctx, lg, m)
}

// newSalesAPIServer builds the sales API on top of an open, migrated pool.
func newSalesAPIServer(ctx context.Context, cfg *SalesAPIConfig, pool *pgxpool.Pool) *server {
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	clientRepo := postgres.NewClientRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)

	// Domain services.
	authService := auth.NewService(userRepo, auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL))
	saleService := sale.NewService(productRepo, clientRepo, saleRepo)

	h := api.NewHandler(authService, productRepo, clientRepo, saleService)

	return &server{
		name:    "sales-api",
		addr:    cfg.Addr,
		health:  healthSvc,
		api:     h.Routes(),
		prefix:  "/api",
		cors:    cfg.CORS,
		headers: []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
		rateLimit: httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		},
		graceful: cfg.Graceful,
	}
}
