// Package cli wires the weathertool commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmoreira/weathertool/internal/cache"
	"github.com/dmoreira/weathertool/internal/client"
	"github.com/dmoreira/weathertool/internal/config"
	"github.com/dmoreira/weathertool/internal/observability"
	"github.com/dmoreira/weathertool/internal/service"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version information displayed by --version. Called by
// main with values injected via ldflags at build time.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// Execute runs the weathertool CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "weathertool",
		Short:         "Fetch and cache current weather from OpenWeatherMap",
		Long:          "weathertool queries current weather for a city, caching results for a short window to avoid redundant API calls.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(fmt.Sprintf("weathertool %s (commit %s)\n", version, commit))

	root.AddCommand(newGetCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newDisplayCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newServeCmd())

	return root.ExecuteContext(ctx)
}

// app bundles everything a command needs after startup.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	svc     *service.WeatherService
	store   cache.Store
	client  *client.OpenWeatherClient
	closers []func() error

	// cachePing is non-nil for remote cache backends.
	cachePing func() error
}

// newApp builds the service from configuration. Configuration problems fail
// here, before any command runs a query.
func newApp() (*app, error) {
	logger, err := observability.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	weatherClient, err := client.NewOpenWeatherClientWithRetry(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPILang,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, client: weatherClient}

	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		a.store = mc
		a.cachePing = mc.Ping
		a.closers = append(a.closers, mc.Close)
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "redis":
		rs := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		a.store = rs
		a.cachePing = func() error { return rs.Ping(context.Background()) }
		a.closers = append(a.closers, rs.Close)
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		a.store = cache.NewMemoryStore()
		logger.Info("cache backend: in_memory")
	}

	a.svc = service.NewWeatherService(weatherClient, a.store, cfg.CacheTTL, cfg.CacheBackend)
	return a, nil
}

// ctx returns a command context carrying the app logger, so the service
// layer logs with the same fields as the HTTP path.
func (a *app) ctx(parent context.Context) context.Context {
	return context.WithValue(parent, "logger", a.logger)
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
