package api

import (
	"log/slog"
	"time"

	"github.com/contractd/contractd/pkg/metrics"
	"github.com/contractd/contractd/pkg/ratelimit"
)

// Default server values.
const (
	DefaultAddr         = ":4242"
	DefaultReadTimeout  = 5 * time.Minute
	DefaultWriteTimeout = 15 * time.Minute
	DefaultMaxBodyBytes = 10 << 20
)

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	addr         string
	apiKey       string
	version      string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	limiter      *ratelimit.PerIPLimiter
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxBodyBytes int64
}

func defaultServerConfig() *serverConfig {
	return &serverConfig{
		addr:         DefaultAddr,
		version:      "dev",
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *serverConfig) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithAPIKey sets the key required on /test. Empty disables the check.
func WithAPIKey(key string) Option {
	return func(c *serverConfig) {
		c.apiKey = key
	}
}

// WithVersion sets the version reported by /health and /openapi.json.
func WithVersion(version string) Option {
	return func(c *serverConfig) {
		if version != "" {
			c.version = version
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) {
		c.logger = logger
	}
}

// WithMetrics enables collection and the /metrics endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serverConfig) {
		c.metrics = m
	}
}

// WithRateLimiter enables per-client rate limiting.
func WithRateLimiter(l *ratelimit.PerIPLimiter) Option {
	return func(c *serverConfig) {
		c.limiter = l
	}
}

// WithTimeouts sets the HTTP server read and write timeouts. Zero keeps the
// default.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *serverConfig) {
		if read > 0 {
			c.readTimeout = read
		}
		if write > 0 {
			c.writeTimeout = write
		}
	}
}

// WithMaxBodyBytes limits request bodies. Larger bodies are rejected with 413.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}
