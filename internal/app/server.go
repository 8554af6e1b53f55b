// Package app wires the salesdesk binaries: configuration, dependencies,
// HTTP servers and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/salesdesk/pkg/health"
	"github.com/xenking/salesdesk/pkg/httpmiddleware"
)

// server bundles what every salesdesk binary exposes: health endpoints, an API
// handler and the shared middleware chain.
type server struct {
	name      string
	addr      string
	health    *health.Health
	api       http.Handler
	prefix    string
	cors      CORSConfig
	headers   []string
	rateLimit httpmiddleware.RateLimitConfig
	graceful  GracefulConfig
}

func (s *server) handler(ctx context.Context, tp trace.TracerProvider, mp metric.MeterProvider) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", s.health.LiveEndpoint)
	mux.HandleFunc("/readyz", s.health.ReadyEndpoint)
	if s.prefix == "" {
		mux.Handle("/", s.api)
	} else {
		mux.Handle(s.prefix+"/", http.StripPrefix(s.prefix, s.api))
	}

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     s.cors.Origins,
			AllowHeaders:     s.headers,
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: s.cors.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(s.rateLimit),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(s.name, tp, mp),
		httpmiddleware.LogRequests(),
	)
}

// run serves until ctx is cancelled, then flips readiness, waits for load
// balancers to notice and drains in-flight requests.
func (s *server) run(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
	srv := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Submissions wait on the sales API for up to the submit timeout.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           s.addr,
		Handler:        s.handler(ctx, m.TracerProvider(), m.MeterProvider()),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", s.graceful.ReadinessDelay))
		time.Sleep(s.graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", s.graceful.ShutdownTimeout))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		s.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", s.addr), zap.String("server", s.name))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
