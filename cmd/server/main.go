package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"talentgate/internal/auth/authenticator"
	"talentgate/internal/auth/credentials"
	authhandler "talentgate/internal/auth/handler"
	authmetrics "talentgate/internal/auth/metrics"
	"talentgate/internal/auth/service"
	"talentgate/internal/auth/session"
	"talentgate/internal/auth/workers/cleanup"
	"talentgate/internal/authz/guard"
	authzhandler "talentgate/internal/authz/handler"
	authzmetrics "talentgate/internal/authz/metrics"
	"talentgate/internal/authz/resolver"
	jwttoken "talentgate/internal/jwt_token"
	"talentgate/internal/platform/config"
	"talentgate/internal/platform/health"
	"talentgate/internal/platform/logger"
	ratelimitconfig "talentgate/internal/ratelimit/config"
	ratelimitmetrics "talentgate/internal/ratelimit/metrics"
	ratelimit "talentgate/internal/ratelimit/middleware"
	"talentgate/internal/ratelimit/models"
	"talentgate/internal/ratelimit/store/bucket"
	authmw "talentgate/pkg/platform/middleware/auth"
	"talentgate/pkg/platform/middleware/metadata"
	"talentgate/pkg/platform/circuit"
	"talentgate/pkg/platform/middleware/request"
)

const (
	poolStatsInterval    = 15 * time.Second
	bucketPruneInterval  = time.Minute
	rateLimitRedisPrefix = "talentgate:ratelimit"
)

// main wires dependencies, exposes the HTTP router, and keeps the server
// lifecycle small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	if cfg.IsProduction() && cfg.UsesDefaultSigningKey() {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}
	if cfg.UsesDefaultSigningKey() {
		log.Warn("using the development JWT signing key")
	}

	log.Info("initializing talentgate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"session_backend", cfg.SessionBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	infra, err := openInfrastructure(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	st, err := buildStores(cfg, infra)
	if err != nil {
		return err
	}

	authMetrics := authmetrics.New(reg)
	sessions := session.NewManager(st.sessions, session.WithLogger(log))
	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, jwttoken.WithAccessTTL(cfg.Auth.AccessTokenTTL))
	passwords := credentials.New(credentials.WithCost(cfg.Auth.BcryptCost), credentials.WithLogger(log))

	authService, err := service.New(st.users, sessions, tokens, passwords,
		&service.Config{
			RefreshTokenTTL:      cfg.Auth.RefreshTokenTTL,
			RememberMeRefreshTTL: cfg.Auth.RememberMeRefreshTTL,
			RequireVerifiedEmail: cfg.Auth.RequireVerifiedEmail,
		},
		service.WithLogger(log),
		service.WithMetrics(authMetrics),
		service.WithOrganizations(st.organizations, st.memberships),
	)
	if err != nil {
		return err
	}

	authn := authenticator.New(tokens, sessions, st.users,
		authenticator.Config{
			RefreshThreshold:       cfg.Auth.RefreshThreshold,
			RequireVerifiedEmail:   cfg.Auth.RequireVerifiedEmail,
			AllowSessionlessTokens: cfg.Auth.AllowSessionlessTokens,
			Public:                 authenticator.DefaultPublicRoutes(),
		},
		authenticator.WithLogger(log),
		authenticator.WithRecorder(authMetrics),
	)

	authz, err := resolver.New(st.memberships,
		resolver.WithLogger(log),
		resolver.WithRecorder(authzmetrics.New(reg)),
		resolver.WithJobOwnership(st.owners),
		resolver.WithDepartmentOwnership(st.owners),
	)
	if err != nil {
		return err
	}
	policy := guard.New(authz, guard.WithLogger(log))

	cleaner, err := cleanup.New(sessions,
		cleanup.WithCleanupInterval(cfg.SessionCleanupInterval),
		cleanup.WithCleanupLogger(log),
		cleanup.WithRecorder(authMetrics),
	)
	if err != nil {
		return err
	}

	healthHandler := health.New(cfg.Environment, log)
	infra.RegisterChecks(healthHandler)

	memoryBuckets := bucket.NewInMemoryBucketStore()
	var buckets ratelimit.Store = memoryBuckets
	if infra.redis != nil {
		buckets = bucket.NewFallbackStore(
			bucket.NewRedisBucketStore(infra.redis.Client, rateLimitRedisPrefix),
			memoryBuckets,
			circuit.New("ratelimit_redis"),
			log,
		)
	}
	rules := ratelimitconfig.Rules(cfg.RateLimit)
	limiterMetrics := ratelimitmetrics.New(reg)
	ipLimiter := ratelimit.New(buckets, models.ByStrategy(rules, models.StrategyIP),
		ratelimit.WithLogger(log), ratelimit.WithRecorder(limiterMetrics))
	userLimiter := ratelimit.New(buckets, models.ByStrategy(rules, models.StrategyUser),
		ratelimit.WithLogger(log), ratelimit.WithRecorder(limiterMetrics))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(cfg.TrustedProxies).Handler)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Instrument(request.NewMetrics(reg)))
	r.Use(request.BodyLimit(0))
	r.Use(request.Timeout(cfg.RequestTimeout))
	if cfg.RateLimit.Enabled {
		r.Use(ipLimiter.Handler)
	}
	r.Use(authmw.RequireAuth(authn, log))
	if cfg.RateLimit.Enabled {
		r.Use(userLimiter.Handler)
	}

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		authhandler.New(authService, log).Register(r)
		authzhandler.New(policy, authz, log).Register(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(cleaner.Start(gctx))
	})
	if infra.redis != nil {
		g.Go(func() error {
			return infra.redis.RunPoolStats(gctx, poolStatsInterval)
		})
	}
	if cfg.RateLimit.Enabled {
		g.Go(func() error {
			return memoryBuckets.RunPruner(gctx, bucketPruneInterval)
		})
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
