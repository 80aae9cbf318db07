package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates what the prompt's text is used for.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
	PromptReply
	PromptPost
	PromptInvite
	PromptName
	PromptAbout
	PromptAdd
)

var promptLabels = map[PromptMode]struct{ label, title string }{
	PromptCommand: {":", " Command "},
	PromptFilter:  {"/", " Filter "},
	PromptReply:   {"> ", " Reply to status "},
	PromptPost:    {"path: ", " Post status (path [caption]) "},
	PromptInvite:  {"name: ", " Invite to call "},
	PromptName:    {"name: ", " Edit name "},
	PromptAbout:   {"about: ", " Edit about "},
	PromptAdd:     {"name: ", " New contact "},
}

// Prompt is a command/filter input bar.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
	}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := p.GetText()
			p.SetText("")
			if text == "" {
				if p.onCancel != nil {
					p.onCancel()
				}
				return
			}
			if p.onSubmit != nil {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})

	return p
}

// SetOnSubmit sets the callback when the prompt is submitted.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback when the prompt is cancelled.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate shows the prompt in the specified mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.SetText("")
	l := promptLabels[mode]
	p.SetLabel(l.label)
	p.SetTitle(l.title)
}

// ActivateWith shows the prompt prefilled with text.
func (p *Prompt) ActivateWith(mode PromptMode, text string) {
	p.Activate(mode)
	p.SetText(text)
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}
