package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

// StatusList shows one row per story author, my status first.
type StatusList struct {
	*tview.Table
	theme  *ui.Theme
	groups []types.StoryGroup
	now    func() time.Time
}

// NewStatusList creates the status table.
func NewStatusList(theme *ui.Theme) *StatusList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Status ")
	table.SetTitleColor(theme.TitleColor)

	return &StatusList{Table: table, theme: theme, now: time.Now}
}

// Name implements ui.Page.
func (sl *StatusList) Name() string { return "Status" }

// Label implements ui.Page.
func (sl *StatusList) Label() string { return "Status" }

// FocusTarget implements ui.Page.
func (sl *StatusList) FocusTarget() tview.Primitive { return sl }

// Update re-renders the groups.
func (sl *StatusList) Update(groups []types.StoryGroup) {
	sl.groups = groups
	sl.Clear()

	for col, h := range []string{" AUTHOR", " STORIES", " LATEST", " REPLIES", " VIEWS"} {
		exp := 0
		if col == 0 {
			exp = 1
		}
		sl.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sl.theme.TableHeaderFg).
			SetBackgroundColor(sl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(exp))
	}

	now := sl.now()
	row := 1
	if len(groups) == 0 || groups[0].UserID != types.MyUserID {
		sl.SetCell(row, 0, tview.NewTableCell(" My status [::d](n to add)").SetExpansion(1).SetTextColor(sl.theme.FgColor))
		row++
	}
	for _, g := range groups {
		name := sanitizeForTerminal(g.UserName)
		if g.UserID == types.MyUserID {
			name = "My status"
		}
		var latest time.Time
		var replies, views int
		for _, s := range g.Stories {
			if s.Timestamp.After(latest) {
				latest = s.Timestamp
			}
			replies += len(s.Replies)
			views += s.ViewCount
		}
		sl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(name)).SetExpansion(1).SetTextColor(sl.theme.FgColor))
		sl.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf(" %d", len(g.Stories))).SetTextColor(sl.theme.CounterColor).SetAlign(tview.AlignRight))
		sl.SetCell(row, 2, tview.NewTableCell(" "+ago(latest, now)).SetTextColor(sl.theme.FgColor).SetAlign(tview.AlignRight))
		sl.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf(" %d", replies)).SetTextColor(sl.theme.FgColor).SetAlign(tview.AlignRight))
		sl.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf(" %d", views)).SetTextColor(sl.theme.FgColor).SetAlign(tview.AlignRight))
		row++
	}
	sl.SetTitle(fmt.Sprintf(" Status (%d) ", len(groups)))
}

// SelectedGroup returns the group under the cursor.
func (sl *StatusList) SelectedGroup() (types.StoryGroup, bool) {
	row, _ := sl.GetSelection()
	idx := row - 1
	if len(sl.groups) == 0 || sl.groups[0].UserID != types.MyUserID {
		idx-- // placeholder row for my empty status
	}
	if idx < 0 || idx >= len(sl.groups) {
		return types.StoryGroup{}, false
	}
	return sl.groups[idx], true
}
