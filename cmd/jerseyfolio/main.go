// Command jerseyfolio runs the jersey catalog server and the tools around
// it: a terminal browser, catalog listings, remote admin calls and offline
// maintenance of the data directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// Global flags
	logLevel  string
	logFormat string
	serverURL string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jerseyfolio",
	Short: "jerseyfolio - a jersey catalog server and its tools",
	Long: `jerseyfolio serves a jersey catalog kept as three JSON documents
(jerseys, categories, tags): a public gallery, an admin editor and a live
event stream that reloads every open view when the catalog changes.

Configuration is read from the environment and from .env when present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := firstSet(logLevel, os.Getenv("LOG_LEVEL"))
		format := firstSet(logFormat, os.Getenv("LOG_FORMAT"), "console")
		var err error
		logger, err = logging.New(level, format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the jerseyfolio version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jerseyfolio %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log encoding (json or console); defaults to LOG_FORMAT")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("JERSEYFOLIO_SERVER", "http://localhost:3000"), "backend URL for client commands")

	rootCmd.AddCommand(serveCmd, initCmd, browseCmd, catalogCmd, adminCmd, cleanCmd, mirrorCmd, passwdCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
