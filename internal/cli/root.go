// Package cli implements the voiceink-notion CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/voiceink-notion/internal/config"
	"github.com/rcliao/voiceink-notion/internal/logging"
	"github.com/rcliao/voiceink-notion/internal/notion"
	"github.com/rcliao/voiceink-notion/internal/state"
	"github.com/rcliao/voiceink-notion/internal/voiceink"
)

var (
	configPath string
	statePath  string
	dbPath     string
	logLevel   string
	logFile    string
	formatFlag string

	logger   = slog.Default()
	closeLog = func() error { return nil }
)

// RootCmd is the top-level command. Without a subcommand it syncs continuously.
var RootCmd = &cobra.Command{
	Use:   "voiceink-notion",
	Short: "Sync VoiceInk transcriptions to Notion",
	Long:  "Mirrors transcriptions from the local VoiceInk database into a Notion database. Each transcription is uploaded once.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger, closeLog = logging.Setup(logging.Options{Level: logLevel, File: logFile})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLog()
	},
	Run: func(cmd *cobra.Command, args []string) {
		syncCmd.SetContext(cmd.Context())
		runSync(syncCmd, args)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/voiceink-to-notion/config.json)")
	RootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Sync state file (default: ~/.config/voiceink-to-notion/sync_state.json)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "VoiceInk database (default: $VOICEINK_DB_PATH or auto-detected)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $VOICEINK_NOTION_LOG_LEVEL or info)")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated at 10 MB")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	p, err := config.DefaultPath()
	if err != nil {
		exitErr("resolve config path", err)
	}
	return p
}

func getStatePath() string {
	if statePath != "" {
		return statePath
	}
	p, err := state.DefaultPath()
	if err != nil {
		exitErr("resolve state path", err)
	}
	return p
}

// loadConfig reads the config and applies the --db override.
func loadConfig() *config.Config {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.VoiceInkDBPath = dbPath
	}
	return cfg
}

// loadValidConfig is loadConfig for commands that talk to Notion.
func loadValidConfig() *config.Config {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		exitErr("invalid config (run 'voiceink-notion setup')", err)
	}
	return cfg
}

// getDBPath resolves the VoiceInk database: flag or config first, then the
// standard VoiceInk locations.
func getDBPath(cfg *config.Config) (string, error) {
	if cfg.VoiceInkDBPath != "" {
		return cfg.VoiceInkDBPath, nil
	}
	return voiceink.FindDatabase()
}

func openStateStore() *state.Store {
	return state.NewStore(getStatePath(), logger)
}

func newNotionClient(cfg *config.Config) *notion.Client {
	return notion.New(cfg.NotionAPIKey, cfg.NotionDatabaseID, notion.WithLogger(logger))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
