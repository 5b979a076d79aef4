package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Zones     ZonesConfig     `yaml:"zones" mapstructure:"zones"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Routing   RoutingConfig   `yaml:"routing" mapstructure:"routing"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Navy      NavyConfig      `yaml:"navy" mapstructure:"navy"`
	SOS       SOSConfig       `yaml:"sos" mapstructure:"sos"`
	Kafka     KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Location  LocationConfig  `yaml:"location" mapstructure:"location"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs     int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs    int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database backend. Driver is "sqlite" or
// "postgres"; DatabaseURL is a file path for sqlite and a DSN for postgres.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ZonesConfig selects the risk-zone catalog.
type ZonesConfig struct {
	CatalogPath  string `yaml:"catalog_path" mapstructure:"catalog_path"`
	SamplePoints int    `yaml:"sample_points" mapstructure:"sample_points"`
}

// GeocodeConfig configures the Nominatim client and its cache.
type GeocodeConfig struct {
	BaseURL      string   `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit    float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	CountryCodes []string `yaml:"country_codes" mapstructure:"country_codes"`
	CacheSize    int      `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLMins int      `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// RoutingConfig configures the OSRM client.
type RoutingConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Profile string `yaml:"profile" mapstructure:"profile"`
}

// RedisConfig enables the shared geocode cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// AnthropicConfig holds Anthropic API credentials.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// NavyConfig configures the help assistant relay.
type NavyConfig struct {
	Model            string `yaml:"model" mapstructure:"model"`
	MaxTokens        int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SOSConfig configures emergency alerts.
type SOSConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	HoldSecs   int    `yaml:"hold_secs" mapstructure:"hold_secs"`
	RearmSecs  int    `yaml:"rearm_secs" mapstructure:"rearm_secs"`
}

// KafkaConfig enables publishing SOS events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// LocationConfig configures the location fallback chain.
type LocationConfig struct {
	GeoIPDB string `yaml:"geoip_db" mapstructure:"geoip_db"`
}

// AuthConfig configures session tokens. Secret is the HS256 signing key.
type AuthConfig struct {
	Secret        string `yaml:"secret" mapstructure:"secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours" mapstructure:"token_ttl_hours"`
}

// TokenTTL returns the configured token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NAVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 60)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "navis.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("zones.catalog_path", "")
	v.SetDefault("zones.sample_points", 12)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "navis-api/1.0 (suporte@navis.com)")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.country_codes", []string{"br"})
	v.SetDefault("geocode.cache_size", 2048)
	v.SetDefault("geocode.cache_ttl_mins", 1440)
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.profile", "driving")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("navy.model", "claude-haiku-4-5-20251001")
	v.SetDefault("navy.max_tokens", 1024)
	v.SetDefault("navy.breaker_threshold", 5)
	v.SetDefault("navy.breaker_reset_secs", 30)
	v.SetDefault("sos.webhook_url", "")
	v.SetDefault("sos.hold_secs", 2)
	v.SetDefault("sos.rearm_secs", 3)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "sos.alerts")
	v.SetDefault("location.geoip_db", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const minSecretLength = 32

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if len(c.Auth.Secret) < minSecretLength {
		return eris.Errorf("config: auth.secret must be at least %d bytes", minSecretLength)
	}
	if c.Auth.TokenTTLHours <= 0 {
		return eris.New("config: auth.token_ttl_hours must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
