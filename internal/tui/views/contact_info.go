package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

// ContactInfo displays detailed information about a contact.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactInfo creates a new contact info view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Contact Info ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Page.
func (ci *ContactInfo) Name() string { return "Info" }

// Label implements ui.Page.
func (ci *ContactInfo) Label() string { return "Info" }

// FocusTarget implements ui.Page.
func (ci *ContactInfo) FocusTarget() tview.Primitive { return ci }

// Update renders contact details from the open conversation.
func (ci *ContactInfo) Update(thread *rpc.ListMessagesResponse) {
	ci.Clear()
	if thread == nil {
		return
	}
	c := thread.Contact

	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	presence := "online"
	if !c.Online {
		presence = "last seen " + ago(c.LastSeen, time.Now())
	}
	blocked := "no"
	if thread.Blocked {
		blocked = "yes"
	}

	var media, sent int
	for _, m := range thread.Messages {
		if m.File != nil {
			media++
		}
		if m.Sender == types.SenderUser {
			sent++
		}
	}

	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]ID:[-:-:-]       [%s]%s[-]\n"+
			" [%s::b]Presence:[-:-:-] [%s]%s[-]\n"+
			" [%s::b]Avatar:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Messages:[-:-:-] [%s]%d (%d sent)[-]\n"+
			" [%s::b]Media:[-:-:-]    [%s]%d[-]\n"+
			" [%s::b]Blocked:[-:-:-]  [%s]%s[-]\n",
		fg, ct, tview.Escape(c.Name),
		fg, ct, c.ID,
		fg, ct, presence,
		fg, ct, tview.Escape(c.Avatar),
		fg, ct, len(thread.Messages), sent,
		fg, ct, media,
		fg, ct, blocked,
	)

	_, _ = fmt.Fprint(ci, text)
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(c.Name)))
}
