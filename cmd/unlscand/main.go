// Command unlscand is the UNL daemon: a long-running process that indexes
// Unreal-Engine-shaped C++ source trees and serves their symbol graph over a
// length-prefixed msgpack RPC socket (§4.6).
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taku25/unlscan/internal/config"
	"github.com/taku25/unlscan/internal/daemon"
)

var (
	flagPort     int
	flagRegistry string
	flagLogFile  string
	flagLogLevel string
)

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("unlscand: invalid --log-level %q: %w", flagLogLevel, err)
	}

	var out *os.File = os.Stderr
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("unlscand: open log file: %w", err)
		}
		out = f
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if flagPort != 0 {
		cfg.ServerPort = flagPort
	}
	if flagRegistry != "" {
		cfg.RegistryPath = flagRegistry
	}
	if cfg.RegistryPath == "" {
		cfg.RegistryPath = daemon.DefaultRegistryPath()
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg := loadConfig()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("unlscand: init daemon: %w", err)
	}

	logger.Info().Str("component", "unlscand").Int("port", cfg.ServerPort).
		Str("registry", cfg.RegistryPath).Msg("starting")
	return d.Serve()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "unlscand",
		Short: "UNL symbol-graph daemon",
		Long:  "unlscand indexes Unreal-Engine-shaped C++ source trees and serves queries over RPC.",
		RunE:  runServe,
	}
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "TCP port to listen on (default: UNL_SERVER_PORT or 30110)")
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "", "path to the project registry JSON file")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "unlscand: %v\n", err)
		os.Exit(1)
	}
}
