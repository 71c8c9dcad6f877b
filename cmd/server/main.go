package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	consenthandler "pharmatrace/internal/consent/handler"
	consentmetrics "pharmatrace/internal/consent/metrics"
	"pharmatrace/internal/consent/service"
	jwttoken "pharmatrace/internal/jwt_token"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/platform/httpserver"
	"pharmatrace/internal/platform/logger"
	"pharmatrace/internal/platform/metrics"
	"pharmatrace/internal/platform/ratelimit"
	audit "pharmatrace/pkg/platform/audit"
	"pharmatrace/pkg/platform/audit/publisher"
	"pharmatrace/pkg/platform/httputil"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	reg := prometheus.DefaultRegisterer
	sampler := publisher.NewSampler(cfg.Audit.OpsSampleRate)
	for action, rate := range cfg.Audit.ActionSampleRates {
		sampler.SetRate(audit.AuditEvent(action), rate)
	}
	auditPublisher := publisher.NewPublisher(infra.auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.Buffer),
		publisher.WithLogger(log),
		publisher.WithSampler(sampler),
	)
	defer func() {
		if err := auditPublisher.Close(); err != nil {
			log.Warn("audit publisher close", "error", err)
		}
	}()

	client := service.New(
		service.WithLogger(log),
		service.WithMetrics(consentmetrics.New(reg)),
		service.WithAuditPublisher(auditPublisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "pharmatrace", "consent-gateway")
	handler := consenthandler.New(
		client,
		consenthandler.StaticSession(infra.session),
		infra.idempotency,
		log,
		metrics.New(reg),
		jwttoken.NewJWTServiceAdapter(jwtService),
		consenthandler.Config{
			Cluster:        cfg.Ledger.Cluster,
			IdempotencyTTL: cfg.IdempotencyTTL,
			SignLimiter:    ratelimit.NewLimiter(infra.rateLimits, "consent_sign", cfg.SignRateLimit, cfg.SignRateWindow, log),
			AuditTrail:     auditPublisher,
		},
	)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	wallet, _ := infra.session.WalletAddress()
	log.Info("starting pharmatrace gateway",
		"addr", cfg.Addr,
		"ledger_mode", cfg.Ledger.Mode,
		"program_id", cfg.Ledger.ProgramID,
		"audit_sink", cfg.Audit.Sink,
		"wallet", wallet,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("pharmatrace gateway stopped", slog.Any("error", err))
	return err
}
