// Package cmd implements the hid-macro Cobra command tree.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hid-macro/hid-macro/internal/config"
	"github.com/spf13/cobra"
)

// Version, Commit, and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configPathFlag string
	logLevelFlag   string

	// cfg is loaded once before any subcommand runs.
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "hid-macro",
	Short: "Record and replay HID macros against a kvmd host",
	Long: `hid-macro - Record and replay keyboard, mouse, ATX and GPIO macros

Captures a stream of HID and peripheral-control events into a timed script,
validates and converts scripts between JSON and YAML, and replays them
against a kvmd host with the original timing.

Configuration is read from $XDG_CONFIG_HOME/hid-macro/config.toml (or
--config), then overridden by HIDMACRO_URL, HIDMACRO_USER,
HIDMACRO_PASSWORD, HIDMACRO_LIBRARY, HIDMACRO_LOG_LEVEL and
HIDMACRO_INSECURE.

Examples:
  # Capture events from a JSON-lines stream
  hid-macro record --output login.json < events.jsonl

  # Check a script before using it
  hid-macro validate login.json

  # Replay it against the configured host
  hid-macro play login.json

  # Keep it in the library and replay it by name
  hid-macro library save login login.json
  hid-macro play --name login --loop`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits
	rootCmd.SetVersionTemplate(fmt.Sprintf("hid-macro version {{.Version}} (commit: %s, built: %s)\n", Commit, Date))
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "config file (default $XDG_CONFIG_HOME/hid-macro/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// setup loads the configuration and installs the process-wide logger.
func setup(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPathFlag)
	if err != nil {
		return err
	}
	if logLevelFlag != "" {
		loaded.LogLevel = logLevelFlag
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()})
	slog.SetDefault(slog.New(handler))
	return nil
}
