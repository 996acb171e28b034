// Package tui renders command output: validation reports, run summaries
// and progress.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/ethoflow/ethoflow/pkg/validation"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

const rule = "  ─────────────────────────────────────"

// PrintHeader prints the program banner.
func PrintHeader(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  ETHOFLOW")+mutedStyle.Render(" "+version))
	fmt.Fprintln(w, mutedStyle.Render("  Instantaneous sampling of behavioral observations"))
	fmt.Fprintln(w)
}

// PrintValidation prints the pairing report of a batch. It returns true when
// every observation passed.
func PrintValidation(w io.Writer, b validation.BatchResult) bool {
	for _, id := range b.Kept {
		fmt.Fprintf(w, "  %s %s\n", successStyle.Render("✓"), id)
	}
	for _, r := range b.Rejected {
		fmt.Fprintf(w, "  %s %s %s\n",
			accentStyle.Render("✗"),
			r.ObservationID,
			mutedStyle.Render(fmt.Sprintf("(%d problem%s)", len(r.Result.Diagnostics), plural(len(r.Result.Diagnostics)))))
		for _, d := range r.Result.Diagnostics {
			fmt.Fprintf(w, "      %s %s\n", mutedStyle.Render(string(d.Reason)), d.String())
		}
	}
	if len(b.Rejected) == 0 {
		return true
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render(fmt.Sprintf("  ▸ %d observation%s removed: unpaired state events",
		len(b.Rejected), plural(len(b.Rejected)))))
	return false
}

// Summary describes a finished sampling run.
type Summary struct {
	Observations int
	Subjects     int
	Tables       int
	Rows         int64
	FilesWritten int
	FilesSkipped int
	FilesResumed int
	BytesWritten int64
	Destination  string
	Duration     time.Duration
}

// PrintSummary prints results after a run.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("  ✓ SAMPLING COMPLETE"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Tables:"),
		titleStyle.Render(fmt.Sprintf("%d", s.Tables))+
			mutedStyle.Render(fmt.Sprintf(" (%d observations, %d rows)", s.Observations, s.Rows)))

	files := fmt.Sprintf("%d written", s.FilesWritten)
	if s.FilesSkipped > 0 {
		files += fmt.Sprintf(", %d skipped", s.FilesSkipped)
	}
	if s.FilesResumed > 0 {
		files += fmt.Sprintf(", %d already done", s.FilesResumed)
	}
	fmt.Fprintf(w, "  %s %s %s\n", mutedStyle.Render("Files:"), titleStyle.Render(files),
		mutedStyle.Render("("+formatBytes(s.BytesWritten)+")"))
	if s.Destination != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Output:"), codeStyle.Render(s.Destination))
	}
	if s.Duration > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(s.Duration)))
	}
	fmt.Fprintln(w)
}

// PrintGrid prints sample instants, several per line.
func PrintGrid(w io.Writer, instants []string) {
	const perLine = 10
	for i := 0; i < len(instants); i += perLine {
		end := min(i+perLine, len(instants))
		fmt.Fprintln(w, "  "+strings.Join(instants[i:end], "  "))
	}
	fmt.Fprintln(w, mutedStyle.Render(rule))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Instants:"), titleStyle.Render(fmt.Sprintf("%d", len(instants))))
}

// NewProgress creates a progress bar over total units, writing to w.
func NewProgress(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
