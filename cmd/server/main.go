package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"intromarket/internal/domainmatch"
	"intromarket/internal/introduction/capacity"
	introhandler "intromarket/internal/introduction/handler"
	intrometrics "intromarket/internal/introduction/metrics"
	"intromarket/internal/introduction/query"
	introservice "intromarket/internal/introduction/service"
	"intromarket/internal/introduction/worker"
	jwttoken "intromarket/internal/jwt_token"
	"intromarket/internal/platform/config"
	"intromarket/internal/platform/httpserver"
	"intromarket/internal/platform/logger"
	"intromarket/internal/platform/metrics"
	settingscache "intromarket/internal/settings/cache"
	settingshandler "intromarket/internal/settings/handler"
	settingsservice "intromarket/internal/settings/service"
	"intromarket/internal/verification"
	verificationhandler "intromarket/internal/verification/handler"
	verificationmetrics "intromarket/internal/verification/metrics"
	audit "intromarket/pkg/platform/audit"
	"intromarket/pkg/platform/audit/relay"
	"intromarket/pkg/platform/httputil"
	adminmw "intromarket/pkg/platform/middleware/admin"
	authmw "intromarket/pkg/platform/middleware/auth"
	request "intromarket/pkg/platform/middleware/request"
	"intromarket/pkg/platform/middleware/requesttime"
)

// main wires the stores, services and handlers, then runs the HTTP server
// alongside the optional reconcile worker and audit relay until a signal
// arrives.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	a := newApp(cfg, log, b, appMetrics{
		http:          metrics.New(),
		introductions: intrometrics.New(),
		verification:  verificationmetrics.New(),
	})

	rl, closeRelay, err := newAuditRelay(ctx, cfg, b, log)
	if err != nil {
		return err
	}
	defer closeRelay()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, a.router), cfg.Server.ShutdownTimeout, log)
	})
	if cfg.Reconcile.Interval > 0 {
		w := worker.New(a.lifecycle,
			worker.WithInterval(cfg.Reconcile.Interval),
			worker.WithBatchSize(cfg.Reconcile.BatchSize),
			worker.WithLogger(log),
		)
		g.Go(func() error { return w.Run(ctx) })
	}
	if rl != nil {
		g.Go(func() error { return rl.Run(ctx) })
	}

	log.Info("starting intromarket",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"storage", b.kind,
		"reconcile_interval", cfg.Reconcile.Interval.String(),
	)
	return g.Wait()
}

// newAuditRelay returns a nil relay when no brokers are configured or the
// backend keeps no audit outbox to drain.
func newAuditRelay(ctx context.Context, cfg config.Config, b *backend, log *slog.Logger) (*relay.Relay, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	if b.outbox == nil {
		log.WarnContext(ctx, "kafka brokers set but storage has no audit outbox; relay disabled", "storage", b.kind)
		return nil, func() {}, nil
	}
	publisher, err := relay.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	if err != nil {
		return nil, nil, err
	}
	if err := publisher.Ping(ctx); err != nil {
		log.WarnContext(ctx, "kafka not reachable at startup; relay will retry", "error", err)
	}
	rl := relay.New(b.outbox, b.tx, publisher,
		relay.WithInterval(cfg.Kafka.RelayInterval),
		relay.WithLogger(log),
	)
	return rl, publisher.Close, nil
}

// appMetrics are registered once per process; tests leave them nil.
type appMetrics struct {
	http          *metrics.Metrics
	introductions *intrometrics.Metrics
	verification  *verificationmetrics.Metrics
}

type app struct {
	router    http.Handler
	lifecycle *introservice.Service
}

func newApp(cfg config.Config, log *slog.Logger, b *backend, m appMetrics) *app {
	emitter := audit.NewEmitter(b.audit, log)

	settingsOpts := []settingsservice.Option{
		settingsservice.WithAuditEmitter(emitter),
		settingsservice.WithLogger(log),
	}
	if b.redis != nil {
		settingsOpts = append(settingsOpts, settingsservice.WithCache(settingscache.NewRedis(b.redis, cfg.Redis.SettingsTTL)))
	}
	settings := settingsservice.New(b.settings, settingsOpts...)

	guard := capacity.NewGuard(b.requests, b.accounts, settings)
	lifecycle := introservice.New(b.requests, b.accounts, guard, settings, b.tx,
		introservice.WithAuditEmitter(emitter),
		introservice.WithMetrics(m.introductions),
		introservice.WithLogger(log),
	)
	queries := query.NewService(b.reader)

	verifier := verification.New(b.accounts, verification.NewHTTPProber(cfg.Verification.ProbeTimeout), b.tx,
		verification.WithMatcher(domainmatch.NewMatcher(domainmatch.Strategy(cfg.DomainMatch.Mode))),
		verification.WithAuditEmitter(emitter),
		verification.WithMetrics(m.verification),
		verification.WithLogger(log),
		verification.WithRetryDelay(cfg.Verification.RetryDelay),
	)

	jwtValidator := jwttoken.NewMiddlewareAdapter(
		jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience))

	introductions := introhandler.New(lifecycle, queries, b.accounts, log)
	verifications := verificationhandler.New(verifier, log)
	settingsAdmin := settingshandler.New(settings, log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(request.Recover(log))
	if m.http != nil {
		r.Use(m.http.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", b.healthz)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwtValidator, log))
		introductions.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.Auth.AdminToken, log))
		introductions.RegisterAdmin(r)
		verifications.Register(r)
		settingsAdmin.Register(r)
	})

	return &app{router: r, lifecycle: lifecycle}
}

func (b *backend) healthz(w http.ResponseWriter, r *http.Request) {
	if err := b.Health(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
