package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 4 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is one notification. Repeat counts identical messages
// posted while it was still showing.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Repeat  int
	Expires time.Time
	Sticky  bool
}

// FlashModel holds the current notification and an optional sticky one
// that shows whenever no transient message does, e.g. "offline".
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	sticky  *FlashMessage
	now     func() time.Time
	watchCh chan FlashMessage
}

func NewFlashModel() *FlashModel {
	return &FlashModel{
		now:     time.Now,
		watchCh: make(chan FlashMessage, 8),
	}
}

func (f *FlashModel) Info(msg string) { f.post(msg, FlashInfo) }

func (f *FlashModel) Warn(msg string) { f.post(msg, FlashWarn) }

func (f *FlashModel) Err(err error) { f.post(err.Error(), FlashErr) }

// Sticky shows msg as a warning until ClearSticky.
func (f *FlashModel) Sticky(msg string) {
	f.mu.Lock()
	f.sticky = &FlashMessage{Text: msg, Level: FlashWarn, Sticky: true}
	fm := *f.sticky
	f.mu.Unlock()
	f.notify(fm)
}

// ClearSticky drops the sticky message. It reports whether one was set.
func (f *FlashModel) ClearSticky() bool {
	f.mu.Lock()
	had := f.sticky != nil
	f.sticky = nil
	f.mu.Unlock()
	return had
}

func (f *FlashModel) post(msg string, level FlashLevel) {
	now := f.now()
	f.mu.Lock()
	fm := FlashMessage{Text: msg, Level: level, Expires: now.Add(flashTTL[level])}
	if f.current.Text == msg && f.current.Level == level && now.Before(f.current.Expires) {
		fm.Repeat = f.current.Repeat + 1
	}
	f.current = fm
	f.mu.Unlock()
	f.notify(fm)
}

func (f *FlashModel) notify(fm FlashMessage) {
	select {
	case f.watchCh <- fm:
	default:
	}
}

// GetMessage returns the live transient message, else the sticky one,
// else nil.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text != "" && f.now().Before(f.current.Expires) {
		m := f.current
		return &m
	}
	if f.sticky != nil {
		m := *f.sticky
		return &m
	}
	return nil
}

// Watch delivers every posted message.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the one-line notification strip under the crumbs.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update renders msg; nil clears the bar.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}

	color := fb.theme.FlashInfoColor
	icon := "ℹ"
	switch msg.Level {
	case FlashWarn:
		color, icon = fb.theme.FlashWarnColor, "⚠"
	case FlashErr:
		color, icon = fb.theme.FlashErrColor, "✗"
	}
	text := tview.Escape(msg.Text)
	if msg.Repeat > 0 {
		text += fmt.Sprintf(" (×%d)", msg.Repeat+1)
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s %s[-]", ColorName(color), icon, text)
}
