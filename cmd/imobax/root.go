package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Siguza/imobax/internal/config"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.2.0"

var (
	// Global flags
	cfgPath   string
	logLevel  string
	logFormat string
	quiet     bool
	globalCfg *config.Config
	logger    = slog.New(slog.DiscardHandler)
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imobax",
		Short: "Restore the files of an iOS backup into a directory tree",
		Long: `imobax reads the manifest of an iOS device backup (Manifest.db or the
older Manifest.mbdb) and copies every file it lists out of the backup's
content-addressed storage into a plain directory tree organised by domain.`,
		Example: `  imobax list ~/Library/Application\ Support/MobileSync/Backup/<udid>
  imobax restore ./backup ./restored
  imobax restore -f -i -j 4 ./backup ./restored
  imobax config show`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = setupLogging(os.Stderr, logLevel, logFormat)

			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			if cfgPath == "" {
				found, err := config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
				cfgPath = found
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			// Flags win over the config file.
			level, format := globalCfg.Log.Level, globalCfg.Log.Format
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				format = logFormat
			}
			logger = setupLogging(os.Stderr, level, format)

			logger.Debug("config loaded", "path", cfgPath)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	cmd.AddCommand(
		newRestoreCmd(),
		newListCmd(),
		newConfigCmd(),
	)

	return cmd
}

// Execute runs the root command and prints a returned error.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "imobax: %v\n", err)
		return err
	}
	return nil
}

// setupLogging builds the slog logger for the given level and format and
// installs it as the default.
func setupLogging(w io.Writer, levelName, format string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":       true,
		"version":    true,
		"completion": true,
		"init":       true,
	}
	return skipConfigCmds[cmdName]
}

// commandContext returns the context of cmd, or a background context for
// commands run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil {
		if ctx := cmd.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

