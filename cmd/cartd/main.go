package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cartkit/internal/cache"
	"github.com/noah-isme/cartkit/internal/cart"
	"github.com/noah-isme/cartkit/internal/config"
	"github.com/noah-isme/cartkit/internal/health"
	"github.com/noah-isme/cartkit/internal/lock"
	"github.com/noah-isme/cartkit/internal/obs"
	"github.com/noah-isme/cartkit/internal/ratelimit"
	"github.com/noah-isme/cartkit/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	ns := cfg.Obs.MetricsNamespace
	httpMetrics := obs.NewHTTPMetrics(ns, nil)
	cartMetrics := obs.NewCartMetrics(ns, nil)
	breakerMetrics := resilience.NewMetrics(ns, nil)

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "cartd",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	probes := map[string]health.Probe{}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn().Msg("REDIS_URL not set; carts live in process memory")
	}

	saved, closeSaved, err := openSavedCarts(ctx, cfg, logger, probes)
	if err != nil {
		logger.Fatal().Err(err).Msg("open saved cart store")
	}
	defer closeSaved()

	bus, closeBus := newBus(cfg, logger, redisClient, breakerMetrics)
	defer closeBus()

	base, err := cartConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("cart defaults")
	}
	base.Saved = saved
	base.Publisher = bus
	base.Metrics = cartMetrics

	var open func(string) cart.SessionStore
	if redisClient != nil {
		sessions := cache.RedisSessions{Client: redisClient, TTL: cfg.Cart.SessionTTL}
		open = func(id string) cart.SessionStore { return sessions.Session(id) }
		if cfg.Cart.UseLock {
			base.Locker = lock.Locker{Client: redisClient}
		}
	} else {
		sessions := cache.NewMemorySessions()
		open = func(id string) cart.SessionStore { return sessions.Session(id) }
	}
	cartHandler := &cart.Handler{Carts: cart.SessionFactory(base, open), Logger: logger}

	limit, err := newRateLimit(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limiter")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", obs.SessionHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))

	r.Handle("/metrics", promhttp.Handler())
	healthHandler := health.Handler{Probes: probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		if cfg.HTTP.MaxBodyBytes > 0 {
			v.Use(middleware.RequestSize(cfg.HTTP.MaxBodyBytes))
		}
		v.Use(middleware.NoCache)
		v.Use(limit.Middleware)
		cartHandler.Routes(v)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-stop.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newRateLimit(cfg *config.Config, client *redis.Client, logger zerolog.Logger) (ratelimit.Handler, error) {
	rate, err := ratelimit.ParseRate(cfg.HTTP.RateLimit)
	if err != nil || rate.Limit == 0 {
		return ratelimit.Handler{}, err
	}
	h := ratelimit.Handler{
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	if client == nil {
		h.Limiter = ratelimit.NewMemoryLimiter(rate)
		return h, nil
	}
	h.Limiter, err = ratelimit.NewRedisLimiter(client, ratelimit.DefaultPrefix, rate)
	return h, err
}
