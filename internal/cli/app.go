package cli

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/quarry"
	"github.com/aretw0/quarry/internal/config"
	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/adapters/completion"
	"github.com/aretw0/quarry/pkg/adapters/csvsource"
	"github.com/aretw0/quarry/pkg/adapters/file"
	"github.com/aretw0/quarry/pkg/adapters/memory"
	"github.com/aretw0/quarry/pkg/adapters/redis"
	"github.com/aretw0/quarry/pkg/adapters/sampling"
	"github.com/aretw0/quarry/pkg/observability"
	"github.com/aretw0/quarry/pkg/persistence/middleware"
	"github.com/aretw0/quarry/pkg/ports"
	"github.com/aretw0/quarry/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// App bundles the engine, the session manager and the resources they hold.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Engine  *quarry.Engine
	Manager *session.Manager
	Store   ports.SessionStore
	Metrics *observability.Metrics

	closers []func() error
}

// NewLogger builds the application logger from the configured level and format.
func NewLogger(cfg config.Config, debug bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWithFormat(stderr, level, cfg.LogFormat), nil
}

// NewApp wires collaborators, persistence and observability from cfg.
// A nil registerer disables metrics.
func NewApp(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}

	lifecycle := observability.LoggingHooks(logger)
	if reg != nil {
		app.Metrics = observability.NewMetrics(reg)
		lifecycle = observability.Combine(lifecycle, app.Metrics.Hooks())
	}

	opts := []quarry.Option{
		quarry.WithLogger(logger),
		quarry.WithLifecycleHooks(lifecycle),
		quarry.WithSubsetSampling(cfg.SubsetSampling),
	}
	if cfg.Sampling.Enabled {
		opts = append(opts, quarry.WithSampler(sampling.New(
			sampling.WithURL(cfg.Sampling.URL),
			sampling.WithCount(cfg.Sampling.Count),
			sampling.WithTaskType(cfg.Sampling.TaskType),
			sampling.WithApplyLog(cfg.Sampling.ApplyLog),
			sampling.WithHTTPClient(&http.Client{Timeout: cfg.Sampling.Timeout}),
			sampling.WithLogger(logger),
		)))
	}
	if cfg.Completion.URL != "" {
		opts = append(opts, quarry.WithCompleter(completion.New(cfg.Completion.URL, cfg.Completion.Timeout)))
	}
	app.Engine = quarry.New(opts...)

	store, locker, closer, err := NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	app.Store = store

	mgrOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(locker), session.WithLockTTL(cfg.Store.Redis.LockTTL))
	}
	app.Manager = session.NewManager(store, app.Engine, mgrOpts...)
	return app, nil
}

// NewStore opens the configured session store. Redis also yields a distributed
// locker sharing the same client, and a closer for the connection. A configured
// encryption key seals every session before it reaches the backend.
func NewStore(cfg config.StoreConfig) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	store, locker, closer, err := openBackend(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.EncryptionKey == "" {
		return store, locker, closer, nil
	}

	enc := middleware.EncryptionConfig{}
	if enc.ActiveKey, err = middleware.ParseKey(cfg.EncryptionKey); err != nil {
		return nil, nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	mw, err := middleware.NewEncryptionMiddleware(enc)
	if err != nil {
		return nil, nil, nil, err
	}
	return middleware.Chain(store, mw), locker, closer, nil
}

func openBackend(cfg config.StoreConfig) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil, nil
	case config.BackendFile:
		return file.New(cfg.Dir), nil, nil, nil
	case config.BackendRedis:
		opts := []redis.Option{redis.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		return store, redis.NewLocker(store.Client(), prefix), store.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Datasets confines ingest sources named by remote clients to the configured
// root and hosts.
func (a *App) Datasets() csvsource.Sandbox {
	return csvsource.Sandbox{
		Root:         a.Config.Datasets.Root,
		AllowedHosts: a.Config.Datasets.AllowedHosts,
	}
}

// Close releases store connections.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
