package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"corkboard/internal/boardsync"
	"corkboard/internal/identity"
	"corkboard/internal/store"
)

const connectTimeout = 10 * time.Second

// app bundles what every command needs: configuration, the acting user and
// the opened stores.
type app struct {
	config   *Config
	user     identity.User
	logger   *log.Logger
	backend  store.Backend
	cache    *store.FileCache
	registry *prometheus.Registry
	metrics  *boardsync.Metrics
}

func newApp(ctx context.Context, config *Config) (*app, error) {
	logger := loggerFromContext(ctx)

	cache, err := store.NewFileCache(config.CacheDirectory)
	if err != nil {
		logger.Warn("board cache disabled", "dir", config.CacheDirectory, "err", err)
		cache = nil
	}

	backend, err := openBackend(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	a := &app{
		config:   config,
		user:     identity.Resolve(config.User),
		logger:   logger,
		backend:  backend,
		cache:    cache,
		registry: registry,
		metrics:  boardsync.NewMetrics(registry),
	}
	logger.Debug("session ready", "user", a.user.Name, "backend", config.Store.Backend, "cache", config.CacheDirectory)
	return a, nil
}

// openBackend connects the configured store. The "none" backend returns a
// nil Backend.
func openBackend(ctx context.Context, config *Config, logger *log.Logger) (store.Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	sc := config.Store
	switch sc.Backend {
	case backendNone:
		return nil, nil
	case backendMemory:
		return store.NewMemory(), nil
	case backendRedis:
		r, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			Prefix:   sc.KeyPrefix,
			Logger:   logger.WithPrefix("redis"),
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store at %s: %w", sc.RedisAddr, err)
		}
		return r, nil
	case backendMongo:
		m, err := store.NewMongo(ctx, store.MongoOptions{
			URI:        sc.MongoURI,
			Database:   sc.MongoDatabase,
			Collection: sc.MongoCollection,
			Logger:     logger.WithPrefix("mongo"),
		})
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// newController returns a controller acting as the app's user. A nil
// backend makes it offline.
func (a *app) newController(onChange func()) *boardsync.Controller {
	opts := boardsync.Options{
		Cache:           a.cache,
		Logger:          a.logger.WithPrefix("sync"),
		Metrics:         a.metrics,
		PushesPerSecond: a.config.Sync.PushesPerSecond,
		PushBurst:       a.config.Sync.PushBurst,
		PushTimeout:     a.config.Sync.PushTimeout,
		OnChange:        onChange,
	}
	if a.backend != nil {
		opts.Store = a.backend
	}
	return boardsync.New(a.user.Name, opts)
}

// directory returns the listing side of the backend, or an error when
// running offline.
func (a *app) directory() (store.Directory, error) {
	if a.backend == nil {
		return nil, errors.New("no remote store configured")
	}
	return a.backend, nil
}

func (a *app) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}

// serveMetrics exposes the registry on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
}
