package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// formatTimestamp renders a message time: clock today, "Yesterday", else
// month/day.
func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if y := now.AddDate(0, 0, -1); t.Year() == y.Year() && t.YearDay() == y.YearDay() {
		return "Yesterday"
	}
	return t.Format("01/02")
}

// formatClock renders a call duration as mm:ss, or h:mm:ss past an hour.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// ago renders a past time relative to now ("3 minutes ago").
func ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// truncate shortens s to at most w terminal cells, on one line.
func truncate(s string, w int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, w, "…")
}

// containsFold reports whether substr is in s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
