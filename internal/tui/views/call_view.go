package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

// CallView shows the call session: status, elapsed time and roster.
type CallView struct {
	*tview.TextView
	theme *ui.Theme
	now   func() time.Time
}

// NewCallView creates the call page.
func NewCallView(theme *ui.Theme) *CallView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Call ")
	tv.SetTitleColor(theme.TitleColor)
	return &CallView{TextView: tv, theme: theme, now: time.Now}
}

// Name implements ui.Page.
func (cv *CallView) Name() string { return "Call" }

// Label implements ui.Page.
func (cv *CallView) Label() string { return "Call" }

// FocusTarget implements ui.Page.
func (cv *CallView) FocusTarget() tview.Primitive { return cv }

// Update renders the call state.
func (cv *CallView) Update(st types.CallState) {
	cv.Clear()

	kind := "Voice call"
	if st.Kind == types.CallVideo {
		kind = "Video call"
	}
	cv.SetTitle(fmt.Sprintf(" %s ", kind))

	accent := ui.ColorName(cv.theme.TitleColor)
	counter := ui.ColorName(cv.theme.CounterColor)
	switch st.Status {
	case types.CallConnected:
		counter = ui.ColorName(cv.theme.CallLiveColor)
	case types.CallEnded:
		counter = ui.ColorName(cv.theme.CallEndedColor)
	}

	fmt.Fprintf(cv, "\n\n[%s::b]%s[-:-:-]\n", accent, tview.Escape(sanitizeForTerminal(st.Contact.Name)))
	fmt.Fprintf(cv, "[%s]%s[-]\n\n", counter, CallStatusLine(st, cv.now()))

	if len(st.Participants) > 0 {
		fmt.Fprint(cv, "[::b]In call[-:-:-]\n")
		for _, p := range st.Participants {
			fmt.Fprintf(cv, "%s\n", tview.Escape(sanitizeForTerminal(p.Name)))
		}
		fmt.Fprint(cv, "\n")
	}
	if len(st.Pending) > 0 {
		fmt.Fprint(cv, "[::b]Ringing[-:-:-]\n")
		for _, p := range st.Pending {
			fmt.Fprintf(cv, "[::d]%s…[-:-:-]\n", tview.Escape(sanitizeForTerminal(p.Name)))
		}
		fmt.Fprint(cv, "\n")
	}

	mic := "🎤 on"
	if st.Muted {
		mic = "🔇 muted"
	}
	line := mic
	if st.Kind == types.CallVideo {
		cam := "📷 on"
		if st.VideoOff {
			cam = "📷 off"
		}
		line += "    " + cam
	}
	fmt.Fprintf(cv, "\n%s\n", line)
}

// CallStatusLine renders the status row: ringing, the elapsed clock, or
// the end of the call.
func CallStatusLine(st types.CallState, now time.Time) string {
	switch st.Status {
	case types.CallCalling:
		return "Calling…"
	case types.CallConnected:
		elapsed := st.Elapsed
		if !st.StartedAt.IsZero() {
			elapsed = now.Sub(st.StartedAt)
		}
		return formatClock(elapsed)
	case types.CallEnded:
		return "Call ended " + formatClock(st.Elapsed)
	}
	return "No call"
}
