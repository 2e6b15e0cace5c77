package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rcliao/voiceink-notion/internal/model"
	"github.com/rcliao/voiceink-notion/internal/state"
	"github.com/rcliao/voiceink-notion/internal/voiceink"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent transcriptions",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "n", 10, "Max results")
	cmd.Flags().Bool("pending", false, "Only show transcriptions not yet synced")

	RootCmd.AddCommand(cmd)
}

type listEntry struct {
	model.Transcription
	Synced bool `json:"synced"`
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	pendingOnly, _ := cmd.Flags().GetBool("pending")

	db, err := getDBPath(loadConfig())
	if err != nil {
		exitErr("locate VoiceInk database", err)
	}
	records, err := voiceink.NewReader(db).ListRecords(cmd.Context())
	if err != nil {
		exitErr("list", err)
	}

	entries := recentEntries(records, openStateStore().Load(), limit, pendingOnly)

	if formatFlag == "json" {
		printJSON(cmd.OutOrStdout(), entries)
		return
	}
	if err := renderList(cmd.OutOrStdout(), entries); err != nil {
		exitErr("render", err)
	}
}

// recentEntries returns up to limit records, newest first, marked with their
// sync status.
func recentEntries(records []model.Transcription, st *state.SyncState, limit int, pendingOnly bool) []listEntry {
	model.SortNewestFirst(records)

	var entries []listEntry
	for _, r := range records {
		if limit > 0 && len(entries) == limit {
			break
		}
		synced := st.IsSynced(r.ID)
		if pendingOnly && synced {
			continue
		}
		entries = append(entries, listEntry{Transcription: r, Synced: synced})
	}
	return entries
}

func renderList(w io.Writer, entries []listEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No transcriptions found")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("", "Created", "Duration", "Text")
	for _, e := range entries {
		mark := "·"
		if e.Synced {
			mark = "✓"
		}
		if err := table.Append(
			mark,
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			formatDuration(e.Duration),
			model.Preview(e.Text, previewLen),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
