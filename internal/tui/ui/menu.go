package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
)

// menuRows matches the header height minus its border padding.
const menuRows = 6

// Menu shows the key hints of the current page in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update lays hints out top to bottom, then left to right.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	if len(hints) == 0 {
		return
	}
	cols := (len(hints) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range hints {
		if w := hintWidth(h); w > widths[i/menuRows] {
			widths[i/menuRows] = w
		}
	}

	keyColor := ColorName(m.theme.MenuKeyColor)
	numColor := ColorName(m.theme.NumericKeyColor)
	var b strings.Builder
	for row := 0; row < menuRows && row < len(hints); row++ {
		for col := 0; col < cols; col++ {
			i := col*menuRows + row
			if i >= len(hints) {
				break
			}
			h := hints[i]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), h.Description)
			if col < cols-1 {
				b.WriteString(strings.Repeat(" ", widths[col]-hintWidth(h)+3))
			}
		}
		b.WriteString("\n")
	}
	_, _ = fmt.Fprint(m, b.String())
}

func hintWidth(h MenuHint) int {
	return runewidth.StringWidth("<"+h.Key+"> ") + runewidth.StringWidth(h.Description)
}
