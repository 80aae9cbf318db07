package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements ui.Page.
func (hv *HelpView) Name() string { return "Help" }

// Label implements ui.Page.
func (hv *HelpView) Label() string { return "Help" }

// FocusTarget implements ui.Page.
func (hv *HelpView) FocusTarget() tview.Primitive { return hv }

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)

	sections := []struct {
		title string
		keys  [][2]string
	}{
		{"Global Keys", [][2]string{
			{":", "Command mode"}, {"Esc", "Cancel / Go back"},
			{"?", "Help"}, {"q", "Quit / Back"},
			{"Ctrl-C", "Quit immediately"},
		}},
		{"Chats", [][2]string{
			{"Enter", "Open chat"}, {"/", "Filter"},
			{"0", "Clear filter"}, {"1-9", "Jump to Nth chat"},
			{"n", "New contact"}, {"s", "Status"},
			{"p", "Profile"}, {"c", "Current call"},
		}},
		{"Chat", [][2]string{
			{"i", "Focus composer"}, {"Enter", "Send (in composer)"},
			{"t", "Translate last reply"}, {"b", "Block / unblock"},
			{"a", "Voice call"}, {"v", "Video call"},
			{"d", "Contact info"},
		}},
		{"Status", [][2]string{
			{"Enter", "View stories"}, {"n", "Post from a file path"},
			{"Space", "Hold / release"}, {"Left/Right", "Previous / next"},
			{"r", "Reply"}, {"R", "Show replies"},
		}},
		{"Call", [][2]string{
			{"m", "Mute / unmute"}, {"v", "Camera on / off"},
			{"i", "Invite a contact"}, {"e", "End call"},
		}},
		{"Profile", [][2]string{
			{"e", "Edit name"}, {"a", "Edit about"},
			{"s", "Share code"}, {"Enter", "Unblock selected"},
		}},
	}

	var b strings.Builder
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", sec.title)
		for _, k := range sec.keys {
			fmt.Fprintf(&b, "  [%s]%-11s[-:-:-] %s\n", kc, k[0], k[1])
		}
	}
	b.WriteString("\n  [::b]Commands (: mode)[-:-:-]\n\n")
	for _, c := range [][2]string{
		{":chat <name>", "Open chat by name"},
		{":add <name>", "Add a contact"},
		{":post <path> [caption]", "Post a status"},
		{":invite <name>", "Invite to the current call"},
		{":name <text>", "Set profile name"},
		{":about <text>", "Set profile about"},
		{":status", "Status page"},
		{":profile", "Profile page"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit application"},
	} {
		fmt.Fprintf(&b, "  [%s]%-24s[-:-:-] %s\n", kc, c[0], c[1])
	}

	_, _ = fmt.Fprint(hv, b.String())
}
