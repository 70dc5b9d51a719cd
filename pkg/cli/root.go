package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "contractd",
	Short: "contractd serves data contract tests, linting and exports over HTTP",
	Long: `contractd exposes a small HTTP API around a data contract engine:
POST /test runs a contract's checks against one of its servers,
POST /lint validates it and POST /export renders it in another format.

Configuration can be provided via flags, environment variables prefixed
with DATACONTRACT_CLI_, or a configuration file (./contractd.yaml by default).
Running contractd without a subcommand starts the server.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	registerServeFlags(rootCmd)
}
