package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/voiceink-notion/internal/voiceink"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		Run:   runStatus,
	}

	cmd.Flags().Bool("offline", false, "Skip the Notion connection check")

	RootCmd.AddCommand(cmd)
}

type statusReport struct {
	DatabasePath         string     `json:"database_path"`
	DatabaseError        string     `json:"database_error,omitempty"`
	Records              int        `json:"records"`
	SyncedIDs            int        `json:"synced_ids"`
	Pending              int        `json:"pending"`
	NotionCachePopulated bool       `json:"notion_cache_populated"`
	LastSyncTime         *time.Time `json:"last_sync_time"`
	StatePath            string     `json:"state_path"`
	NotionDatabase       string     `json:"notion_database,omitempty"`
	NotionError          string     `json:"notion_error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	offline, _ := cmd.Flags().GetBool("offline")
	ctx := cmd.Context()
	cfg := loadConfig()
	store := openStateStore()
	st := store.Load()

	rep := statusReport{
		SyncedIDs:            st.Len(),
		NotionCachePopulated: st.NotionCachePopulated,
		LastSyncTime:         st.LastSyncTime,
		StatePath:            store.Path(),
	}

	if db, err := getDBPath(cfg); err != nil {
		rep.DatabaseError = err.Error()
	} else {
		rep.DatabasePath = db
		records, err := voiceink.NewReader(db).ListRecords(ctx)
		if err != nil {
			rep.DatabaseError = err.Error()
		}
		rep.Records = len(records)
		for _, r := range records {
			if !st.IsSynced(r.ID) {
				rep.Pending++
			}
		}
	}

	if !offline {
		if err := cfg.Validate(); err != nil {
			rep.NotionError = err.Error()
		} else if conn, err := newNotionClient(cfg).TestConnection(ctx); err != nil {
			rep.NotionError = describeRemoteError(err).Error()
		} else {
			rep.NotionDatabase = conn.DatabaseName
		}
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		printJSON(out, rep)
		return
	}

	if rep.DatabaseError != "" {
		printField(out, "VoiceInk", failStyle.Render(rep.DatabaseError))
	} else {
		printField(out, "VoiceInk", rep.DatabasePath)
	}
	printField(out, "Transcriptions", rep.Records)
	printField(out, "Synced", rep.SyncedIDs)
	printField(out, "Pending", rep.Pending)
	printField(out, "Notion imported", rep.NotionCachePopulated)
	printField(out, "Last sync", ago(rep.LastSyncTime))
	printField(out, "State file", rep.StatePath)
	switch {
	case offline:
	case rep.NotionError != "":
		printField(out, "Notion", failStyle.Render(rep.NotionError))
	default:
		printField(out, "Notion", okStyle.Render("connected to "+rep.NotionDatabase))
	}
}
