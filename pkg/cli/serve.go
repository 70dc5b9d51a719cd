package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/contractd/contractd/pkg/api"
	"github.com/contractd/contractd/pkg/config"
	"github.com/contractd/contractd/pkg/datacontract"
	"github.com/contractd/contractd/pkg/logging"
	"github.com/contractd/contractd/pkg/metrics"
	"github.com/contractd/contractd/pkg/ratelimit"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the data contract HTTP API",
	Long: `Start the HTTP API and block until SIGINT or SIGTERM.

The API key required on POST /test is read from DATACONTRACT_CLI_API_KEY.
When it is unset or empty, /test is open.`,
	Example: `  # Start with defaults on :4242
  contractd serve

  # Require an API key and log JSON
  DATACONTRACT_CLI_API_KEY=secret contractd serve --log-format json

  # Use a config file and enable per-client rate limiting
  contractd serve -c /etc/contractd.yaml --rate-limit --rate-limit-rps 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd.Flags(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	registerServeFlags(serveCmd)
}

// registerServeFlags adds the server flags to cmd. Defaults mirror
// config.Default so --help shows the effective values.
func registerServeFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "Path to config file (default ./contractd.yaml if present)")
	f.String("addr", d.Server.Addr, "Listen address")
	f.Duration("read-timeout", d.Server.ReadTimeout, "Maximum duration for reading a request")
	f.Duration("write-timeout", d.Server.WriteTimeout, "Maximum duration for writing a response")
	f.Int64("max-body-bytes", d.Server.MaxBodyBytes, "Maximum request body size in bytes")
	f.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	f.String("log-format", d.Log.Format, "Log format (text, json)")
	f.Bool("metrics", d.Metrics.Enabled, "Expose Prometheus metrics on /metrics")
	f.Bool("rate-limit", d.RateLimit.Enabled, "Enable per-client rate limiting")
	f.Float64("rate-limit-rps", d.RateLimit.RPS, "Requests per second allowed per client")
	f.Int("rate-limit-burst", d.RateLimit.Burst, "Burst size allowed per client")
}

// runServe loads configuration, starts the API and shuts it down once ctx
// is done.
func runServe(ctx context.Context, flags *pflag.FlagSet, stderr io.Writer) error {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	log, err := logging.FromStrings(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return fmt.Errorf("invalid log settings: %w", err)
	}

	srv, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-ctx.Done()
	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("stopped")
	return nil
}

// newServer wires the data contract engine and the optional middleware
// into an API server.
func newServer(cfg *config.Config, log *slog.Logger) (*api.Server, error) {
	eng := datacontract.New(
		datacontract.WithLogger(log.With("component", "engine")),
		datacontract.WithSchemaTimeout(cfg.Engine.SchemaTimeout),
		datacontract.WithQueryTimeout(cfg.Engine.QueryTimeout),
	)

	opts := []api.Option{
		api.WithAddr(cfg.Server.Addr),
		api.WithAPIKey(cfg.APIKey),
		api.WithVersion(Version),
		api.WithLogger(log),
		api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(metrics.New()))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, api.WithRateLimiter(ratelimit.NewPerIPLimiter(ratelimit.PerIPConfig{
			Rate:           cfg.RateLimit.RPS,
			Burst:          cfg.RateLimit.Burst,
			TrustedProxies: cfg.RateLimit.TrustedProxies,
		})))
	}
	return api.NewServer(eng, opts...)
}
