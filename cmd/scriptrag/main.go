package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptrag/internal/app"
	"github.com/dshills/scriptrag/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "scriptrag",
	Short: "Screenplay retrieval: hybrid lexical and semantic search over script content",
	Long: `scriptrag embeds screenplay content (scenes, dialogue, action and named
entities) and answers hybrid lexical + semantic queries over it, from the
command line or as an MCP server.

Configuration is read from SCRIPTRAG_* environment variables and an optional
.env file in the working directory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides SCRIPTRAG_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides SCRIPTRAG_LOG_LEVEL)")
}

// loadConfig applies command-line overrides on top of the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		if cfg.DBPath, err = config.ExpandPath(dbPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		if cfg.LogLevel, err = config.ParseLogLevel(logLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openApp loads configuration and builds the application. Logs go to stderr
// because stdout is reserved for command output and the MCP protocol.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return app.New(cfg, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
