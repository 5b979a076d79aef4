package main

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/api"
	"github.com/navis-app/navis-api/internal/auth"
	"github.com/navis-app/navis-api/internal/config"
	"github.com/navis-app/navis-api/internal/dashboard"
	"github.com/navis-app/navis-api/internal/feed"
	"github.com/navis-app/navis-api/internal/geo"
	"github.com/navis-app/navis-api/internal/location"
	"github.com/navis-app/navis-api/internal/metrics"
	"github.com/navis-app/navis-api/internal/navy"
	"github.com/navis-app/navis-api/internal/overlay"
	"github.com/navis-app/navis-api/internal/profile"
	"github.com/navis-app/navis-api/internal/resilience"
	"github.com/navis-app/navis-api/internal/route"
	"github.com/navis-app/navis-api/internal/sos"
	"github.com/navis-app/navis-api/internal/store"
	anthropicpkg "github.com/navis-app/navis-api/pkg/anthropic"
	"github.com/navis-app/navis-api/pkg/geocode"
	"github.com/navis-app/navis-api/pkg/osrm"
)

// appEnv holds the initialized store, clients and services needed by the
// serve and route commands.
type appEnv struct {
	Store    store.Store
	Catalog  *geo.Catalog
	Board    *overlay.Board
	Routes   *route.Orchestrator
	Services api.Services

	closers []io.Closer
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.MaxConns)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// loadCatalog returns the configured zone catalog or the built-in one.
func loadCatalog(path string) (*geo.Catalog, error) {
	if path == "" {
		return geo.DefaultCatalog(), nil
	}
	return geo.LoadCatalog(path)
}

// initApp sets up the store, the external clients and every service.
// Callers should defer env.Close().
func initApp(ctx context.Context, m *metrics.Metrics) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	env.Catalog, err = loadCatalog(cfg.Zones.CatalogPath)
	if err != nil {
		env.Close()
		return nil, err
	}
	zap.L().Info("zone catalog loaded", zap.Int("zones", env.Catalog.Len()))

	env.Board = overlay.NewBoard()
	env.Routes = route.NewOrchestrator(
		initGeocoder(env, m),
		osrm.NewClient(osrm.WithBaseURL(cfg.Routing.BaseURL), osrm.WithProfile(cfg.Routing.Profile)),
		env.Catalog,
		env.Board,
		route.WithSamplePoints(cfg.Zones.SamplePoints),
	)

	locOpts := []location.Option{}
	if cfg.Location.GeoIPDB != "" {
		reader, err := location.OpenGeoIP(cfg.Location.GeoIPDB)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, reader)
		locOpts = append(locOpts, location.WithGeoIP(reader))
	}

	env.Services = api.Services{
		Store:       st,
		Auth:        auth.NewService(st, []byte(cfg.Auth.Secret), cfg.Auth.TokenTTL()),
		Catalog:     env.Catalog,
		Routes:      env.Routes,
		Board:       env.Board,
		Dashboard:   dashboard.NewService(st),
		Feed:        feed.NewService(st, nil),
		SOS:         sos.NewService(st, initSOSOptions(env, m)...),
		Profile:     profile.NewService(st, nil),
		Location:    location.NewService(st, locOpts...),
		Navy:        initNavy(m),
		Metrics:     m,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	return env, nil
}

func initGeocoder(env *appEnv, m *metrics.Metrics) geocode.Client {
	inner := geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithCountryCodes(cfg.Geocode.CountryCodes...),
	)
	ttl := time.Duration(cfg.Geocode.CacheTTLMins) * time.Minute

	var cache geocode.Cache
	if cfg.Redis.Addr != "" {
		rc := geocode.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		env.closers = append(env.closers, closerFunc(func() error { return closeRedis(rc) }))
		cache = geocode.NewRedisCache(rc, ttl)
		zap.L().Info("geocode cache: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		cache = geocode.NewMemoryCache(cfg.Geocode.CacheSize, ttl)
	}
	return geocode.NewCachedClient(inner, cache, m.ObserveGeocodeCache)
}

func initNavy(m *metrics.Metrics) *navy.Assistant {
	var client anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		client = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("anthropic key not set, navy assistant relay disabled")
	}
	return navy.NewAssistant(client, cfg.Navy.Model, cfg.Navy.MaxTokens,
		navy.WithMetrics(m),
		navy.WithBreaker(resilience.FromCircuitConfig(cfg.Navy.BreakerThreshold, cfg.Navy.BreakerResetSecs)),
	)
}

func initSOSOptions(env *appEnv, m *metrics.Metrics) []sos.Option {
	opts := []sos.Option{
		sos.WithMetrics(m),
		sos.WithTimings(time.Duration(cfg.SOS.HoldSecs)*time.Second, time.Duration(cfg.SOS.RearmSecs)*time.Second),
	}
	if cfg.SOS.WebhookURL != "" {
		opts = append(opts, sos.WithNotifiers(sos.NewWebhookNotifier(cfg.SOS.WebhookURL)))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := sos.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		env.closers = append(env.closers, k)
		opts = append(opts, sos.WithNotifiers(k))
		zap.L().Info("sos: kafka notifier enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	return opts
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func closeRedis(rc *redis.Client) error {
	return eris.Wrap(rc.Close(), "close redis")
}

// serverTimeouts converts the configured seconds.
func serverTimeouts(c config.ServerConfig) (read, write, shutdown time.Duration) {
	return time.Duration(c.ReadTimeoutSecs) * time.Second,
		time.Duration(c.WriteTimeoutSecs) * time.Second,
		time.Duration(c.ShutdownTimeoutSecs) * time.Second
}
