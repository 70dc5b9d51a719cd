package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
// The API key, for example, is read from DATACONTRACT_CLI_API_KEY.
const EnvPrefix = "DATACONTRACT_CLI"

// Config holds the service configuration.
type Config struct {
	// APIKey is the key /test callers must send in x-api-key. Empty
	// disables the check.
	APIKey string `mapstructure:"api_key"`

	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	RPS            float64  `mapstructure:"rps"`
	Burst          int      `mapstructure:"burst"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// EngineConfig configures the built-in contract engine.
type EngineConfig struct {
	// SchemaTimeout bounds fetching a remote lint schema.
	SchemaTimeout time.Duration `mapstructure:"schema_timeout"`

	// QueryTimeout bounds each data source query run by /test.
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":4242",
			ReadTimeout:     5 * time.Minute,
			WriteTimeout:    15 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			RPS:     10,
			Burst:   20,
		},
		Engine: EngineConfig{
			SchemaTimeout: 30 * time.Second,
			QueryTimeout:  5 * time.Minute,
		},
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":             "server.addr",
	"read-timeout":     "server.read_timeout",
	"write-timeout":    "server.write_timeout",
	"max-body-bytes":   "server.max_body_bytes",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics":          "metrics.enabled",
	"rate-limit":       "ratelimit.enabled",
	"rate-limit-rps":   "ratelimit.rps",
	"rate-limit-burst": "ratelimit.burst",
}

// Load reads configuration from, in increasing priority: defaults, the
// YAML file at configPath (optional; when empty ./contractd.yaml is tried),
// DATACONTRACT_CLI_* environment variables, and flags that were set
// explicitly. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("contractd")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("api_key", "")
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.rps", d.RateLimit.RPS)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
	v.SetDefault("ratelimit.trusted_proxies", []string{})
	v.SetDefault("engine.schema_timeout", d.Engine.SchemaTimeout)
	v.SetDefault("engine.query_timeout", d.Engine.QueryTimeout)
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return &ValidationError{Field: "server.addr", Message: "must not be empty"}
	}
	if c.Server.ReadTimeout <= 0 {
		return &ValidationError{Field: "server.read_timeout", Message: "must be positive"}
	}
	if c.Server.WriteTimeout <= 0 {
		return &ValidationError{Field: "server.write_timeout", Message: "must be positive"}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return &ValidationError{Field: "server.max_body_bytes", Message: "must be positive"}
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return &ValidationError{Field: "ratelimit.rps", Message: "must be positive when rate limiting is enabled"}
		}
		if c.RateLimit.Burst <= 0 {
			return &ValidationError{Field: "ratelimit.burst", Message: "must be positive when rate limiting is enabled"}
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "":
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format %q (want text or json)", c.Log.Format)}
	}
	return nil
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}
