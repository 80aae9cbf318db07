package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/story"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

const segmentWidth = 12

// StoryView renders the frames of the story player.
type StoryView struct {
	*tview.TextView
	theme       *ui.Theme
	showReplies bool
	author      string
	now         func() time.Time
}

// NewStoryView creates the story viewer page.
func NewStoryView(theme *ui.Theme) *StoryView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)
	return &StoryView{TextView: tv, theme: theme, now: time.Now}
}

// Name implements ui.Page.
func (sv *StoryView) Name() string { return "Story" }

// Label names the author of the story on screen.
func (sv *StoryView) Label() string {
	if sv.author == "" {
		return "Story"
	}
	return "Story: " + sv.author
}

// FocusTarget implements ui.Page.
func (sv *StoryView) FocusTarget() tview.Primitive { return sv }

// SetShowReplies toggles the replies panel.
func (sv *StoryView) SetShowReplies(show bool) {
	sv.showReplies = show
}

// Render draws one frame.
func (sv *StoryView) Render(f story.Frame) {
	sv.Clear()
	s := f.Story
	sv.author = sanitizeForTerminal(s.UserName)
	sv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(s.UserName))))

	bar := ui.ColorName(sv.theme.StoryBarColor)
	fmt.Fprintf(sv, "\n [%s]%s[-]\n\n", bar, ProgressBar(f.Index, f.Count, f.Progress, segmentWidth))

	state := ""
	if f.State == story.Paused {
		state = "  ⏸"
	}
	fmt.Fprintf(sv, " [::b]%s[-:-:-] [::d]%s%s[-:-:-]\n\n",
		tview.Escape(sanitizeForTerminal(s.UserName)), ago(s.Timestamp, sv.now()), state)

	icon := "🖼"
	if s.MediaKind == types.MediaVideo {
		icon = "🎞"
		if s.MediaDuration > 0 {
			icon += " " + formatClock(s.MediaDuration)
		}
	}
	fmt.Fprintf(sv, " %s [::u]%s[-:-:-]\n\n", icon, tview.Escape(s.MediaURL))
	if s.Caption != "" {
		fmt.Fprintf(sv, " %s\n\n", tview.Escape(sanitizeForTerminal(s.Caption)))
	}

	if s.UserID == types.MyUserID {
		fmt.Fprintf(sv, " [::d]👁 %d views[-:-:-]\n", s.ViewCount)
	}
	fmt.Fprintf(sv, " [::d]💬 %d replies[-:-:-]\n", len(s.Replies))

	if sv.showReplies {
		sv.renderReplies(s.Replies)
	}
}

func (sv *StoryView) renderReplies(replies []types.StoryReply) {
	fmt.Fprint(sv, "\n [::b]Replies[-:-:-]\n")
	if len(replies) == 0 {
		fmt.Fprint(sv, " [::d]No replies yet[-:-:-]\n")
		return
	}
	now := sv.now()
	for _, r := range replies {
		fmt.Fprintf(sv, " [::b]%s[-:-:-] [::d]%s[-:-:-]\n   %s\n",
			tview.Escape(sanitizeForTerminal(r.UserName)), ago(r.Timestamp, now),
			tview.Escape(sanitizeForTerminal(r.Text)))
	}
}

// ProgressBar draws one segment per story: finished segments full, the
// current one filled to progress percent, later ones empty.
func ProgressBar(index, count int, progress float64, width int) string {
	if count <= 0 || width <= 0 {
		return ""
	}
	segs := make([]string, count)
	for i := range segs {
		filled := 0
		switch {
		case i < index:
			filled = width
		case i == index:
			filled = int(progress / 100 * float64(width))
			filled = max(0, min(filled, width))
		}
		segs[i] = strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
	}
	return strings.Join(segs, " ")
}
