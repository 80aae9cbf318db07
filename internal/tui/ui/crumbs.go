package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
)

const maxCrumbWidth = 24

// Crumbs shows the navigation trail, e.g. "Chats > Elon Musk > Info".
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates an empty crumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update redraws the trail. The last label is the current page.
func (c *Crumbs) Update(labels []string) {
	c.Clear()
	active := fmt.Sprintf("[%s:%s:b]", ColorName(c.theme.CrumbActiveFg), ColorName(c.theme.CrumbActiveBg))
	inactive := fmt.Sprintf("[%s:%s:]", ColorName(c.theme.CrumbInactiveFg), ColorName(c.theme.CrumbInactiveBg))

	var b strings.Builder
	for i, l := range labels {
		if i > 0 {
			b.WriteString(" ")
		}
		style := inactive
		if i == len(labels)-1 {
			style = active
		}
		l = runewidth.Truncate(l, maxCrumbWidth, "…")
		fmt.Fprintf(&b, "%s %s [-:-:-]", style, tview.Escape(l))
	}
	_, _ = fmt.Fprint(c, b.String())
}

// ColorName returns the tview tag name of c.
func ColorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
