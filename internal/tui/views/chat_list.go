package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

const previewWidth = 48

// ChatList is the main contact list view.
type ChatList struct {
	*tview.Table
	theme    *ui.Theme
	contacts []types.Contact
	visible  []types.Contact
	filter   string
	now      func() time.Time
}

// NewChatList creates a new contact list table.
func NewChatList(theme *ui.Theme) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Chats ")
	table.SetTitleColor(theme.TitleColor)

	return &ChatList{
		Table: table,
		theme: theme,
		now:   time.Now,
	}
}

// Name implements ui.Page.
func (cl *ChatList) Name() string { return "Chats" }

// Label implements ui.Page.
func (cl *ChatList) Label() string { return "Chats" }

// FocusTarget implements ui.Page.
func (cl *ChatList) FocusTarget() tview.Primitive { return cl }

// Update refreshes the list with new contacts.
func (cl *ChatList) Update(contacts []types.Contact) {
	cl.contacts = contacts
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ChatList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ChatList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

// Filter returns the active filter.
func (cl *ChatList) Filter() string { return cl.filter }

// Visible returns the contacts that pass the filter, in display order.
func (cl *ChatList) Visible() []types.Contact { return cl.visible }

func (cl *ChatList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" SEEN", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = filterContacts(cl.contacts, cl.filter)
	now := cl.now()
	for i, c := range cl.visible {
		row := i + 1
		name := c.Name
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", c.UnreadCount, name)
		}
		seen := "online"
		if !c.Online {
			seen = ago(c.LastSeen, now)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(truncate(sanitizeForTerminal(c.LastMessage), previewWidth))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(seen).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Chats (%d/%d) filter: %s ", len(cl.visible), len(cl.contacts), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Chats (%d) ", len(cl.contacts)))
	}
}

// SelectedContact returns the id of the contact under the cursor.
func (cl *ChatList) SelectedContact() string {
	row, _ := cl.GetSelection()
	return cl.ContactByIndex(row)
}

// ContactByIndex returns the id of the Nth visible contact (1-based).
func (cl *ChatList) ContactByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].ID
}

func filterContacts(contacts []types.Contact, filter string) []types.Contact {
	if filter == "" {
		return contacts
	}
	var out []types.Contact
	for _, c := range contacts {
		if containsFold(c.Name, filter) || containsFold(c.LastMessage, filter) {
			out = append(out, c)
		}
	}
	return out
}
