package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/rcliao/voiceink-notion/internal/model"
	"github.com/rcliao/voiceink-notion/internal/syncer"
)

const previewLen = 50

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// interactive reports whether prompts can be shown.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printResult(w io.Writer, r syncer.Result) {
	preview := model.Preview(r.Record.Text, previewLen)
	if r.Err != nil {
		fmt.Fprintf(w, "%s %s %s\n", failStyle.Render("✗"), preview, dimStyle.Render(r.Record.ID))
		return
	}
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), preview)
}

func printReport(w io.Writer, r syncer.Report) {
	switch {
	case r.Pending == 0:
		fmt.Fprintln(w, dimStyle.Render("Already up to date"))
	case r.Failed > 0:
		fmt.Fprintf(w, "%s %d of %d synced, %d failed (%s)\n",
			warnStyle.Render("!"), r.Synced, r.Pending, r.Failed, r.Duration.Round(time.Millisecond))
	default:
		fmt.Fprintf(w, "%s %d synced (%s)\n",
			okStyle.Render("✓"), r.Synced, r.Duration.Round(time.Millisecond))
	}
}

func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(fmt.Sprintf("%-16s", label+":")), value)
}

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// ago renders t relative to now, or "never".
func ago(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.Time(*t)
}

func formatDuration(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(100 * time.Millisecond).String()
}
