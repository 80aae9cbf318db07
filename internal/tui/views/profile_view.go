package views

import (
	"fmt"
	"net/url"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

// ProfileView shows the user profile, its share code and the blocked list.
type ProfileView struct {
	*tview.Flex
	theme   *ui.Theme
	info    *tview.TextView
	blocked *tview.Table
	list    []types.Contact
	showQR  bool
}

// NewProfileView creates the profile page.
func NewProfileView(theme *ui.Theme) *ProfileView {
	info := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	info.SetBorder(true)
	info.SetBorderColor(theme.BorderColor)
	info.SetBackgroundColor(theme.BgColor)
	info.SetTextColor(theme.FgColor)
	info.SetTitle(" Profile ")
	info.SetTitleColor(theme.TitleColor)

	blocked := tview.NewTable().SetSelectable(true, false)
	blocked.SetBorder(true)
	blocked.SetBorderColor(theme.BorderColor)
	blocked.SetBackgroundColor(theme.BgColor)
	blocked.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	blocked.SetTitle(" Blocked contacts ")
	blocked.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(info, 0, 2, false).
		AddItem(blocked, 0, 1, true)

	return &ProfileView{Flex: flex, theme: theme, info: info, blocked: blocked}
}

// Name implements ui.Page.
func (pv *ProfileView) Name() string { return "Profile" }

// Label implements ui.Page.
func (pv *ProfileView) Label() string { return "Profile" }

// FocusTarget implements ui.Page.
func (pv *ProfileView) FocusTarget() tview.Primitive { return pv.blocked }

// ToggleQR shows or hides the share code.
func (pv *ProfileView) ToggleQR() {
	pv.showQR = !pv.showQR
}

// Update renders the profile and blocked list.
func (pv *ProfileView) Update(p types.Profile, blocked []types.Contact) {
	pv.info.Clear()
	fg := ui.ColorName(pv.theme.FgColor)
	ct := ui.ColorName(pv.theme.CounterColor)
	_, _ = fmt.Fprintf(pv.info,
		"\n [%s::b]Name:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]About:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Avatar:[-:-:-] [%s]%s[-]\n",
		fg, ct, tview.Escape(sanitizeForTerminal(p.Name)),
		fg, ct, tview.Escape(sanitizeForTerminal(p.About)),
		fg, ct, tview.Escape(p.Avatar),
	)
	if pv.showQR {
		_, _ = fmt.Fprintf(pv.info, "\n  Scan to add me:\n\n%s", renderQR(ShareLink(p)))
	}

	pv.list = blocked
	pv.blocked.Clear()
	if len(blocked) == 0 {
		pv.blocked.SetCell(0, 0, tview.NewTableCell(" [::d]Nobody is blocked").SetSelectable(false))
	}
	for i, c := range blocked {
		pv.blocked.SetCell(i, 0, tview.NewTableCell(" ⊘ "+tview.Escape(sanitizeForTerminal(c.Name))).SetExpansion(1).SetTextColor(pv.theme.FgColor))
	}
	pv.blocked.SetTitle(fmt.Sprintf(" Blocked contacts (%d) ", len(blocked)))
}

// SelectedBlocked returns the id of the blocked contact under the cursor.
func (pv *ProfileView) SelectedBlocked() string {
	row, _ := pv.blocked.GetSelection()
	if row < 0 || row >= len(pv.list) {
		return ""
	}
	return pv.list[row].ID
}

// Blocked returns the blocked table (for focus management).
func (pv *ProfileView) Blocked() *tview.Table {
	return pv.blocked
}

// ShareLink is the text encoded in the profile QR code.
func ShareLink(p types.Profile) string {
	v := url.Values{}
	v.Set("name", p.Name)
	if p.About != "" {
		v.Set("about", p.About)
	}
	return "boss://contact?" + v.Encode()
}
