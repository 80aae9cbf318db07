package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 0-9 shortcuts, drawn in NumericKeyColor
}

// Page is a screen that can sit on the page stack.
type Page interface {
	tview.Primitive
	// Name is the stack key; key bindings are registered against it.
	Name() string
	// Label is the breadcrumb text, e.g. the open contact's name.
	Label() string
	// FocusTarget receives focus when the page comes to the top.
	FocusTarget() tview.Primitive
}
