package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"qsec/internal/models"
)

const (
	maxRenderedLogs = 12
	maxMessageWidth = 90
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Render writes a compact text view of snap to w.
func Render(w io.Writer, snap Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Q-SEC.AI\tDefense Operations\tAI Auto-Remediation: %s\n", snap.Arm)
	if latest, ok := snap.Latest(); ok {
		fmt.Fprintf(tw, "System Load\t%.1f%%\tMemory Usage\t%.1f%%\n", latest.CPU, latest.MemoryPercent)
	} else {
		fmt.Fprintf(tw, "System Load\t0%%\tMemory Usage\t0%%\n")
	}
	fmt.Fprintf(tw, "CPU\t%s\n", Sparkline(snap.Stats, func(s models.StatSample) float64 { return s.CPU }))
	fmt.Fprintf(tw, "MEM\t%s\n", Sparkline(snap.Stats, func(s models.StatSample) float64 { return s.MemoryPercent }))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "Live Security Feed")
	tw = tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	for i, entry := range snap.Logs {
		if i >= maxRenderedLogs {
			fmt.Fprintf(tw, "  … %d more\n", len(snap.Logs)-maxRenderedLogs)
			break
		}
		fmt.Fprintf(tw, "%s [%s]\t%s\t%s:\t%s\n",
			levelMarker(entry.Level),
			entry.Time().Format(time.TimeOnly),
			entry.Level,
			entry.Source,
			truncate(entry.Message, maxMessageWidth),
		)
	}
	return tw.Flush()
}

// Sparkline renders values in the 0–100 range as block characters.
func Sparkline(stats []models.StatSample, value func(models.StatSample) float64) string {
	var b strings.Builder
	for _, s := range stats {
		v := value(s)
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		idx := int(v / 100 * float64(len(sparkRunes)-1))
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func levelMarker(level string) string {
	switch level {
	case models.LevelCritical:
		return "!!"
	case models.LevelWarning, models.LevelError:
		return " !"
	default:
		return "  "
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
