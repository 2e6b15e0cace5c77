package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rcliao/voiceink-notion/internal/config"
	"github.com/rcliao/voiceink-notion/internal/voiceink"
)

func init() {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the Notion connection",
		Long:  "Prompts for the Notion API key and database, stores the key in the OS keyring, and adds any missing database properties.",
		Run:   runSetup,
	}

	cmd.Flags().Bool("no-keyring", false, "Keep the API key in the config file instead of the OS keyring")

	RootCmd.AddCommand(cmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	noKeyring, _ := cmd.Flags().GetBool("no-keyring")
	if !interactive() {
		exitErr("setup", errors.New("setup needs a terminal; set NOTION_API_KEY and NOTION_DATABASE_ID instead"))
	}

	cfg := loadConfig()
	if cfg.VoiceInkDBPath == "" {
		if found, err := voiceink.FindDatabase(); err == nil {
			cfg.VoiceInkDBPath = found
		}
	}
	interval := strconv.Itoa(cfg.SyncIntervalSeconds)

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Notion API key").
			Description("Create an internal integration at notion.so/my-integrations.").
			EchoMode(huh.EchoModePassword).
			Value(&cfg.NotionAPIKey).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("required")
				}
				return nil
			}),
		huh.NewInput().
			Title("Notion database").
			Description("Database id or URL. Share the database with the integration first.").
			Value(&cfg.NotionDatabaseID).
			Validate(func(s string) error {
				_, err := config.NormalizeDatabaseID(s)
				return err
			}),
		huh.NewInput().
			Title("VoiceInk database").
			Value(&cfg.VoiceInkDBPath),
		huh.NewInput().
			Title("Sync interval (seconds)").
			Value(&interval).
			Validate(func(s string) error {
				if n, err := strconv.Atoi(s); err != nil || n <= 0 {
					return errors.New("must be a positive number")
				}
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		exitErr("setup", err)
	}

	cfg.NotionAPIKey = strings.TrimSpace(cfg.NotionAPIKey)
	cfg.SyncIntervalSeconds, _ = strconv.Atoi(interval)
	if err := cfg.Validate(); err != nil {
		exitErr("setup", err)
	}

	out := cmd.OutOrStdout()
	client := newNotionClient(cfg)
	conn, err := client.TestConnection(cmd.Context())
	if err != nil {
		exitErr("setup", describeRemoteError(err))
	}
	fmt.Fprintf(out, "%s Connected to %q\n", okStyle.Render("✓"), conn.DatabaseName)

	schema, err := client.CheckSchema(cmd.Context())
	if err != nil {
		exitErr("check schema", err)
	}
	if !schema.Valid {
		if err := client.SetupSchema(cmd.Context()); err != nil {
			exitErr("set up schema", err)
		}
		fmt.Fprintf(out, "%s Added properties: %s\n", okStyle.Render("✓"), strings.Join(schema.Missing, ", "))
	}

	path := getConfigPath()
	if err := config.Save(path, cfg, !noKeyring); err != nil {
		exitErr("save config", err)
	}
	fmt.Fprintf(out, "%s Saved %s\n", okStyle.Render("✓"), path)
}
