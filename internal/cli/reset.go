package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget which transcriptions have been synced",
		Long:  "Removes the sync state. The next sync re-imports the ids already in Notion before uploading anything.",
		Run:   runReset,
	}

	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	RootCmd.AddCommand(cmd)
}

func runReset(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	store := openStateStore()

	if !yes {
		if !interactive() {
			exitErr("reset", errors.New("refusing to reset without a terminal; pass --yes"))
		}
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Reset sync state at %s?", store.Path())).
			Description("Transcriptions already in Notion are detected again on the next sync.").
			Value(&confirmed).
			Run()
		if err != nil {
			exitErr("confirm", err)
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return
		}
	}

	unlock, err := store.Lock()
	if err != nil {
		exitErr("lock state", err)
	}
	err = store.Reset()
	unlock()
	if err != nil {
		exitErr("reset", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Sync state reset\n", okStyle.Render("✓"))
}
