package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session      string
	Profile      string
	Model        string
	AIConfigured bool
	Contacts     int
	Messages     int
	Stories      int
	Call         string
	Uptime       time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := ColorName(si.theme.FgColor)
	counterColor := ColorName(si.theme.CounterColor)

	model := data.Model
	if !data.AIConfigured {
		model += " (offline)"
	}

	uptime := formatDuration(data.Uptime)

	text := fmt.Sprintf(
		"[%s::b]Session:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Me:[-:-:-]      [%s]%s[-]\n"+
			"[%s::b]Model:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-] [%s::b]Msgs:[-:-:-] [%s]%d[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%d[-] [%s::b]Call:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Session,
		fgColor, counterColor, tview.Escape(data.Profile),
		fgColor, counterColor, model,
		fgColor, counterColor, data.Contacts, fgColor, counterColor, data.Messages,
		fgColor, counterColor, data.Stories, fgColor, counterColor, data.Call,
		fgColor, counterColor, uptime,
	)

	_, _ = fmt.Fprint(si, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
