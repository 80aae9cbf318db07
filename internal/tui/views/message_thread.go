package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/bossmsg/internal/rpc"
	"github.com/matheus3301/bossmsg/internal/tui/ui"
	"github.com/matheus3301/bossmsg/internal/types"
)

// MessageThread displays messages and a composer for a single contact.
type MessageThread struct {
	*tview.Flex
	theme     *ui.Theme
	messages  *tview.TextView
	composer  *tview.InputField
	contact   types.Contact
	blocked   bool
	onSend    func(text string)
	now       func() time.Time
	lastCount int
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil && !mt.blocked {
			text := strings.TrimSpace(composer.GetText())
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements ui.Page.
func (mt *MessageThread) Name() string { return "Chat" }

// Label is the open contact's name.
func (mt *MessageThread) Label() string {
	if mt.contact.Name != "" {
		return mt.contact.Name
	}
	return "Chat"
}

// FocusTarget implements ui.Page.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.messages }

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// ContactID returns the id of the shown contact.
func (mt *MessageThread) ContactID() string {
	return mt.contact.ID
}

// Reset clears the view before another conversation loads.
func (mt *MessageThread) Reset(c types.Contact) {
	mt.contact = c
	mt.lastCount = 0
	mt.messages.Clear()
	mt.composer.SetText("")
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(c.Name)))
}

// Update re-renders the conversation.
func (mt *MessageThread) Update(thread *rpc.ListMessagesResponse) {
	if thread == nil {
		return
	}
	mt.contact = thread.Contact
	mt.blocked = thread.Blocked
	mt.messages.Clear()

	title := " " + tview.Escape(sanitizeForTerminal(thread.Contact.Name))
	switch {
	case thread.Blocked:
		title += " · blocked"
	case thread.Typing:
		title += " · typing…"
	case thread.Contact.Online:
		title += " · online"
	}
	mt.messages.SetTitle(title + " ")

	now := mt.now()
	for _, m := range thread.Messages {
		_, _ = fmt.Fprint(mt.messages, mt.renderMessage(m, thread.Contact.Name, now))
	}
	if len(thread.Messages) == 0 {
		_, _ = fmt.Fprint(mt.messages, "\n [::d]No messages yet. Press i and say hello.[-:-:-]")
	}

	if thread.Blocked {
		mt.composer.SetLabel(" ⊘ ")
		mt.composer.SetLabelColor(mt.theme.BlockedColor)
		mt.composer.SetPlaceholder("Unblock (b) to send messages")
	} else {
		mt.composer.SetLabel(" > ")
		mt.composer.SetLabelColor(mt.theme.MenuKeyColor)
		mt.composer.SetPlaceholder("")
	}

	if len(thread.Messages) != mt.lastCount {
		mt.messages.ScrollToEnd()
		mt.lastCount = len(thread.Messages)
	}
}

func (mt *MessageThread) renderMessage(m types.Message, contactName string, now time.Time) string {
	var b strings.Builder
	sender := contactName
	if m.Sender == types.SenderUser {
		sender = "You"
	}
	nameColor := mt.theme.ContactColor
	if m.Sender == types.SenderUser {
		nameColor = mt.theme.SelfColor
	}
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", ui.ColorName(nameColor), tview.Escape(sanitizeForTerminal(sender)), formatTimestamp(m.Timestamp, now))
	if m.Sender == types.SenderUser {
		tick := mt.theme.TickSentColor
		if m.Status == types.StatusRead {
			tick = mt.theme.TickReadColor
		}
		fmt.Fprintf(&b, " [%s]%s[-]", ui.ColorName(tick), m.Status.Ticks())
	}
	b.WriteString("\n")
	if m.Text != "" {
		b.WriteString(tview.Escape(sanitizeForTerminal(m.Text)))
		b.WriteString("\n")
	}
	if m.File != nil {
		b.WriteString("[::d]" + tview.Escape(describeAttachment(m.File)) + "[-:-:-]\n")
	}
	switch {
	case m.Translating:
		b.WriteString("[::i]translating…[-:-:-]\n")
	case m.TranslatedText != "":
		fmt.Fprintf(&b, "[%s::i]↳ %s[-:-:-]\n", ui.ColorName(mt.theme.TranslationColor), tview.Escape(sanitizeForTerminal(m.TranslatedText)))
	}
	b.WriteString("\n")
	return b.String()
}

func describeAttachment(f *types.Attachment) string {
	switch f.Kind {
	case types.AttachmentLocation:
		if f.Location != nil {
			return fmt.Sprintf("📍 %.5f, %.5f", f.Location.Lat, f.Location.Lng)
		}
		return "📍 location"
	case types.AttachmentAudio:
		if f.Duration > 0 {
			return fmt.Sprintf("🎤 voice message %s", formatClock(f.Duration))
		}
		return "🎤 voice message"
	}
	desc := "📎 " + f.Name
	if f.Size > 0 {
		desc += " (" + humanize.Bytes(uint64(f.Size)) + ")"
	}
	return desc
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
