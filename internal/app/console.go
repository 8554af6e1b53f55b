package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/internal/backend"
	"github.com/xenking/salesdesk/internal/catalog"
	"github.com/xenking/salesdesk/internal/console"
	"github.com/xenking/salesdesk/internal/session"
	"github.com/xenking/salesdesk/pkg/health"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

// RunConsole starts the operator console, which keeps per-operator sessions
// and drafts in memory and forwards submissions to the sales API.
func RunConsole(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *ConsoleConfig) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.BackendURL),
	)

	srv, err := newConsoleServer(ctx, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	return srv.run(ctx, lg, m)
}

// newConsoleServer builds the console and its client of the sales API.
func newConsoleServer(ctx context.Context, cfg *ConsoleConfig, tp trace.TracerProvider, mp metric.MeterProvider) (*server, error) {
	taxRate, err := cfg.taxRate()
	if err != nil {
		return nil, err
	}

	client, err := backend.New(cfg.BackendURL,
		backend.WithTelemetry(tp, mp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create backend client")
	}

	// The console is only useful while the sales API answers.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("sales-api", 5*time.Second, health.HTTPCheck(client.HTTPClient(), client.ReadyURL()))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	sessions, err := session.NewManager(client, session.Config{
		IdleTTL:       cfg.Session.IdleTTL,
		MaxSessions:   cfg.Session.MaxSessions,
		TaxRate:       decimal.NewNullDecimal(taxRate),
		SubmitTimeout: cfg.Session.SubmitTimeout,
	}, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create session manager")
	}
	cat := catalog.New(client, cfg.Catalog.Size, cfg.Catalog.TTL)

	h := console.NewHandler(sessions, cat)

	return &server{
		name:    "console",
		addr:    cfg.Addr,
		health:  healthSvc,
		api:     h.Routes(),
		cors:    cfg.CORS,
		headers: []string{"Content-Type", console.SessionHeader, httpmiddleware.RequestIDHeader},
		rateLimit: httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: console.SessionKey,
		},
		graceful: cfg.Graceful,
	}, nil
}
