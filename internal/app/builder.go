package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rovits/poi-sync-service/internal/api"
	"github.com/rovits/poi-sync-service/internal/app/storage"
	"github.com/rovits/poi-sync-service/internal/cache"
	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/httpclient"
	"github.com/rovits/poi-sync-service/internal/ratelimit"
	"github.com/rovits/poi-sync-service/internal/resolver"
	"github.com/rovits/poi-sync-service/internal/sources"
	"github.com/rovits/poi-sync-service/internal/sources/google"
	"github.com/rovits/poi-sync-service/internal/status"
	"github.com/rovits/poi-sync-service/internal/store"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
	"github.com/rovits/poi-sync-service/internal/sync/coordinator"
	"github.com/rovits/poi-sync-service/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 35 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// TracerName names the tracer handed to every component
	TracerName = "github.com/rovits/poi-sync-service"
)

// POISyncAppOptions is a function that configures the app builder
type POISyncAppOptions func(*appConfig) error

// appConfig collects the builder inputs. Component overrides exist mainly for
// testing; production code relies on the configuration.
type appConfig struct {
	config *config.Config

	// Optional component overrides
	storageFactory storage.Factory
	placeSource    sources.PlaceSource
	cache          cache.Cache
	counters       ratelimit.CounterStore

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler

	// Filled while building
	tracer   trace.Tracer
	closers  []func()
	sweepers []func()
}

func baseConfig(opts ...POISyncAppOptions) (*appConfig, error) {
	cfg := &appConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewPOISyncApp builds every component from the configuration
func NewPOISyncApp(ctx context.Context, opts ...POISyncAppOptions) (*POISyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.tracerProvider != nil {
		cfg.tracer = cfg.tracerProvider.Tracer(TracerName)
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.cleanup()
		}
	}()

	placeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build place store: %w", err)
	}

	if err := buildBackends(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to build cache backends: %w", err)
	}

	if cfg.placeSource == nil {
		cfg.placeSource, err = NewPlaceSource(cfg.config, cfg.tracer)
		if err != nil {
			return nil, fmt.Errorf("failed to build place source: %w", err)
		}
	}

	components, err := buildServiceComponents(cfg, placeStore)
	if err != nil {
		return nil, fmt.Errorf("failed to build service components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	return &POISyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		sweepers:   cfg.sweepers,
		ctx:        appCtx,
		cancelFunc: func() {
			cfg.cleanup()
			cancel()
		},
	}, nil
}

func (cfg *appConfig) cleanup() {
	for i := len(cfg.closers) - 1; i >= 0; i-- {
		cfg.closers[i]()
	}
	cfg.closers = nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) POISyncAppOptions {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithPlaceSource allows injecting a custom upstream source (for testing)
func WithPlaceSource(src sources.PlaceSource) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.placeSource = src
		return nil
	}
}

// WithCache allows injecting a custom cache (for testing)
func WithCache(c cache.Cache) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.cache = c
		return nil
	}
}

// WithCounterStore allows injecting custom rate limit counters (for testing)
func WithCounterStore(s ratelimit.CounterStore) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.counters = s
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp metric.MeterProvider) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) POISyncAppOptions {
	return func(cfg *appConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// NewPlaceSource builds the Google Places client from the configuration
func NewPlaceSource(cfg *config.Config, tracer trace.Tracer) (*google.Client, error) {
	g := &cfg.Sources.Google
	apiKey, err := g.GetAPIKey()
	if err != nil {
		return nil, err
	}

	return google.New(apiKey,
		google.WithEndpoint(g.GetEndpoint()),
		google.WithMaxRetries(g.GetMaxRetries()),
		google.WithHTTPClient(httpclient.NewDefaultClient(g.GetTimeout())),
		google.WithTracer(tracer),
	), nil
}

// buildStore creates the place store through the storage factory
func buildStore(ctx context.Context, cfg *appConfig) (store.PlaceStore, error) {
	if cfg.storageFactory == nil {
		f, err := storage.NewStorageFactory(ctx, cfg.config, storage.WithTracer(cfg.tracer))
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
		cfg.storageFactory = f
	}
	cfg.closers = append(cfg.closers, cfg.storageFactory.Cleanup)

	return cfg.storageFactory.CreatePlaceStore(ctx)
}

// buildBackends creates the cache and the rate limit counters. Both share
// one Redis client when the cache type is redis.
func buildBackends(ctx context.Context, cfg *appConfig) error {
	if cfg.cache != nil && cfg.counters != nil {
		return nil
	}

	cacheCfg := cfg.config.Cache
	switch cacheCfg.GetType() {
	case config.CacheTypeRedis:
		if cacheCfg.Redis == nil {
			return fmt.Errorf("redis configuration is required for redis cache type")
		}
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			URL:        cacheCfg.Redis.URL,
			PoolSize:   cacheCfg.Redis.PoolSize,
			MaxRetries: cacheCfg.Redis.MaxRetries,
		})
		if err != nil {
			return err
		}
		cfg.closers = append(cfg.closers, func() {
			if err := client.Close(); err != nil {
				slog.Error("Failed to close Redis client", "error", err)
			}
		})
		slog.Info("Using Redis cache and rate limit counters")

		if cfg.cache == nil {
			cfg.cache = cache.NewRedisCache(client)
		}
		if cfg.counters == nil {
			cfg.counters = ratelimit.NewRedisCounterStore(client)
		}
	case config.CacheTypeMemory:
		slog.Info("Using in-memory cache and rate limit counters")
		if cfg.cache == nil {
			mc := cache.NewMemoryCache()
			cfg.cache = mc
			cfg.sweepers = append(cfg.sweepers, func() { mc.Sweep() })
		}
		if cfg.counters == nil {
			mc := ratelimit.NewMemoryCounterStore()
			cfg.counters = mc
			cfg.sweepers = append(cfg.sweepers, func() { mc.Sweep() })
		}
	default:
		return fmt.Errorf("unknown cache type: %s", cacheCfg.GetType())
	}
	return nil
}

// buildServiceComponents wires the resolver, the job registry and the sync
// pipeline around the shared store, cache and source
func buildServiceComponents(cfg *appConfig, placeStore store.PlaceStore) (*Components, error) {
	slog.Info("Initializing service components")

	c := cfg.config
	resolverOpts := []resolver.Option{
		resolver.WithSearchTTL(c.Cache.GetSearchTTL()),
		resolver.WithDetailsTTL(c.Cache.GetDetailsTTL()),
		resolver.WithWriteTimeout(c.Sync.GetWriteTimeout()),
		resolver.WithTracer(cfg.tracer),
	}
	coordOpts := []coordinator.Option{
		coordinator.WithAreas(coordinator.AreasFromConfig(c.Sync.Areas)...),
		coordinator.WithTracer(cfg.tracer),
	}

	if cfg.meterProvider != nil {
		resolverMetrics, err := telemetry.NewResolverMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create resolver metrics: %w", err)
		}
		resolverOpts = append(resolverOpts, resolver.WithMetrics(resolverMetrics))

		syncMetrics, err := telemetry.NewSyncMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		coordOpts = append(coordOpts, coordinator.WithSyncMetrics(syncMetrics))
		slog.Info("Resolver and sync metrics enabled")
	}

	registry := status.NewRegistry(status.WithRetention(c.Sync.GetJobRetention()))
	pipeline := pkgsync.NewPipeline(cfg.placeSource, placeStore,
		pkgsync.WithConcurrency(c.Sync.GetConcurrency()),
		pkgsync.WithTracer(cfg.tracer),
	)

	lockout := ratelimit.NewLockout(
		ratelimit.WithMaxAttempts(c.RateLimit.Lockout.GetMaxAttempts()),
		ratelimit.WithMaxIPAttempts(c.RateLimit.Lockout.GetMaxIPAttempts()),
		ratelimit.WithBlockDuration(c.RateLimit.Lockout.GetBlockDuration()),
	)
	cfg.sweepers = append(cfg.sweepers, lockout.Sweep)

	return &Components{
		Store:       placeStore,
		Resolver:    resolver.New(cfg.cache, placeStore, cfg.placeSource, resolverOpts...),
		Registry:    registry,
		Pipeline:    pipeline,
		Coordinator: coordinator.New(pipeline, registry, coordOpts...),
		Limiter:     ratelimit.NewLimiter(cfg.counters),
		Lockout:     lockout,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(cfg *appConfig, components *Components) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if cfg.middlewares == nil {
		cfg.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			api.CorrelationIDMiddleware,
			middleware.Recoverer,
			middleware.Timeout(cfg.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Instrumentation goes first so rejected requests are observed too
	instrumentation, err := telemetry.NewHTTPInstrumentation(cfg.tracerProvider, cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP instrumentation: %w", err)
	}
	var observe []func(http.Handler) http.Handler
	if instrumentation != nil {
		observe = append(observe, instrumentation.Middleware)
	}
	var rateLimitMetrics *telemetry.RateLimitMetrics
	if cfg.meterProvider != nil {
		rateLimitMetrics, err = telemetry.NewRateLimitMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit metrics: %w", err)
		}
	}
	rl := cfg.config.RateLimit
	trustedProxies, err := rl.GetTrustedProxies()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trusted proxies: %w", err)
	}
	middlewares := append(observe, ratelimit.RealIP(trustedProxies))
	middlewares = append(middlewares, cfg.middlewares...)

	jwtSecret, err := rl.GetJWTSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT secret: %w", err)
	}
	middlewares = append(middlewares, ratelimit.Middleware(components.Limiter, ratelimit.MiddlewareConfig{
		AnonymousLimit:     rl.GetAnonymousLimit(),
		AuthenticatedLimit: rl.GetAuthenticatedLimit(),
		Period:             rl.GetPeriod(),
		JWTSecret:          []byte(jwtSecret),
		Metrics:            rateLimitMetrics,
	}))

	if keyCfg := cfg.config.Server.APIKey; keyCfg != nil {
		key, err := keyCfg.GetValue()
		if err != nil {
			return nil, fmt.Errorf("failed to read API key: %w", err)
		}
		middlewares = append(middlewares, api.APIKeyMiddleware(api.APIKeyConfig{
			Header:  keyCfg.GetHeader(),
			Key:     key,
			Limiter: components.Limiter,
			Limit:   rl.GetAuthenticatedLimit(),
			Period:  rl.GetPeriod(),
			Lockout: components.Lockout,
		}))
		slog.Info("API key authentication enabled", "header", keyCfg.GetHeader())
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithReadinessChecks(components.Store),
	}
	if cfg.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(cfg.metricsHandler))
	}
	router := api.NewServer(components.Resolver, components.Coordinator, components.Registry, serverOpts...)

	server := &http.Server{
		Addr:         cfg.address,
		Handler:      router,
		ReadTimeout:  cfg.readTimeout,
		WriteTimeout: cfg.writeTimeout,
		IdleTimeout:  cfg.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", cfg.address)
	return server, nil
}
