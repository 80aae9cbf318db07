package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/types"
)

// Send appends a user message to the active conversation, schedules its
// delivery tick and starts consuming the contact's streamed reply.
func (m *Manager) Send(ctx context.Context, text string, file *types.Attachment) (types.Message, error) {
	return m.SendTo(ctx, "", text, file)
}

// SendTo is Send addressed to contactID, which becomes the active
// conversation in the same mutation that appends the message. An empty
// contactID means the active one.
func (m *Manager) SendTo(ctx context.Context, contactID string, text string, file *types.Attachment) (types.Message, error) {
	if strings.TrimSpace(text) == "" && file == nil {
		return types.Message{}, ErrEmptyMessage
	}

	var (
		msg  types.Message
		name string
	)
	err := m.apply(func(s *State) ([]bus.Event, error) {
		target := contactID
		if target == "" {
			target = s.Active
		}
		if target == "" {
			return nil, ErrNoActiveContact
		}
		c := s.contact(target)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContact, target)
		}
		if s.isBlocked(c.ID) {
			return nil, ErrBlocked
		}
		var events []bus.Event
		if s.Active != c.ID {
			s.Active = c.ID
			if c.UnreadCount > 0 {
				c.UnreadCount = 0
				events = append(events, event(bus.KindContactsChanged, *c))
			}
		}
		contactID, name = c.ID, c.Name
		msg = types.Message{
			ID:        m.opts.NewID(),
			Text:      text,
			Sender:    types.SenderUser,
			Timestamp: m.opts.Now(),
			Status:    types.StatusSent,
			File:      file,
		}
		s.appendMessage(contactID, msg)
		s.Typing[contactID] = true
		return append(events,
			event(bus.KindMessageAdded, MessageEvent{ContactID: contactID, Message: msg}),
			event(bus.KindMessagesChanged, contactID),
			event(bus.KindTypingChanged, TypingEvent{ContactID: contactID, Typing: true}),
		), nil
	})
	if err != nil {
		return types.Message{}, err
	}
	m.count(types.SenderUser)

	m.sched.After(msg.ID, m.opts.DeliveryDelay, func() {
		m.advance(contactID, msg.ID, types.StatusDelivered)
	})

	prompt := text
	if prompt == "" && file != nil {
		prompt = "[" + string(file.Kind) + "] " + file.Name
	}
	m.startReply(ctx, contactID, name, msg.ID, prompt)
	return msg, nil
}

// advance moves a message status forward; regressions are ignored.
func (m *Manager) advance(contactID, msgID string, to types.Status) {
	err := m.apply(func(s *State) ([]bus.Event, error) {
		msg := s.message(contactID, msgID)
		if msg == nil {
			return nil, ErrUnknownMessage
		}
		next, moved := msg.Status.Advance(to)
		if !moved {
			return nil, nil
		}
		msg.Status = next
		return []bus.Event{
			event(bus.KindMessageUpdated, MessageEvent{ContactID: contactID, Message: *msg}),
			event(bus.KindMessagesChanged, contactID),
		}, nil
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Warn("status update dropped", zap.String("msg_id", msgID), zap.Error(err))
	}
}

// startReply consumes the reply stream on its own goroutine. The stream
// outlives the caller's request; the consumer stops pulling as soon as the
// manager closes.
func (m *Manager) startReply(ctx context.Context, contactID, contactName, userMsgID, prompt string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(m.ctx, cancel)
	fragments := m.replier.StreamReply(ctx, prompt, contactName)

	go func() {
		defer m.wg.Done()
		defer cancel()
		defer stop()
		m.consumeReply(ctx, contactID, userMsgID, fragments)
	}()
}

func (m *Manager) consumeReply(ctx context.Context, contactID, userMsgID string, fragments <-chan string) {
	var (
		replyID string
		text    strings.Builder
	)
	defer func() {
		if replyID != "" {
			return
		}
		// Zero fragments: clear typing without creating a reply.
		_ = m.apply(func(s *State) ([]bus.Event, error) {
			if !s.Typing[contactID] {
				return nil, nil
			}
			s.Typing[contactID] = false
			return []bus.Event{event(bus.KindTypingChanged, TypingEvent{ContactID: contactID})}, nil
		})
	}()

	for {
		var (
			fragment string
			ok       bool
		)
		select {
		case fragment, ok = <-fragments:
		case <-ctx.Done():
			return
		}
		if !ok {
			return
		}
		text.WriteString(fragment)
		full := text.String()

		if replyID == "" {
			replyID = m.opts.NewID()
			err := m.apply(func(s *State) ([]bus.Event, error) {
				events := []bus.Event{}
				s.Typing[contactID] = false
				events = append(events, event(bus.KindTypingChanged, TypingEvent{ContactID: contactID}))
				if um := s.message(contactID, userMsgID); um != nil {
					if next, moved := um.Status.Advance(types.StatusRead); moved {
						um.Status = next
						events = append(events, event(bus.KindMessageUpdated, MessageEvent{ContactID: contactID, Message: *um}))
					}
				}
				reply := types.Message{
					ID:        replyID,
					Text:      full,
					Sender:    types.SenderAI,
					Timestamp: m.opts.Now(),
					Status:    types.StatusRead,
				}
				s.appendMessage(contactID, reply)
				events = append(events, event(bus.KindMessageAdded, MessageEvent{ContactID: contactID, Message: reply}))
				if c := s.contact(contactID); c != nil {
					c.LastMessage = full
					if s.Active != contactID {
						c.UnreadCount++
					}
					events = append(events, event(bus.KindContactsChanged, *c))
				}
				return append(events, event(bus.KindMessagesChanged, contactID)), nil
			})
			if err != nil {
				return
			}
			m.count(types.SenderAI)
			continue
		}

		err := m.apply(func(s *State) ([]bus.Event, error) {
			reply := s.message(contactID, replyID)
			if reply == nil {
				return nil, ErrUnknownMessage
			}
			reply.Text = full
			events := []bus.Event{
				event(bus.KindMessageUpdated, MessageEvent{ContactID: contactID, Message: *reply}),
				event(bus.KindMessagesChanged, contactID),
			}
			if c := s.contact(contactID); c != nil {
				c.LastMessage = full
				events = append(events, event(bus.KindContactsChanged, *c))
			}
			return events, nil
		})
		if err != nil {
			return
		}
	}
}

// Translate translates a message in place. lang defaults to the configured
// language. The translation (or the translator's failure sentinel) is
// stored on the message and returned.
func (m *Manager) Translate(ctx context.Context, contactID, msgID, lang string) (string, error) {
	if lang == "" {
		lang = m.opts.TranslateLanguage
	}
	var text string
	err := m.apply(func(s *State) ([]bus.Event, error) {
		msg := s.message(contactID, msgID)
		if msg == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, msgID)
		}
		text = msg.Text
		msg.Translating = true
		return []bus.Event{event(bus.KindMessageUpdated, MessageEvent{ContactID: contactID, Message: *msg})}, nil
	})
	if err != nil {
		return "", err
	}

	translated := m.translator.Translate(ctx, text, lang)

	err = m.apply(func(s *State) ([]bus.Event, error) {
		msg := s.message(contactID, msgID)
		if msg == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, msgID)
		}
		msg.Translating = false
		msg.TranslatedText = translated
		return []bus.Event{
			event(bus.KindMessageUpdated, MessageEvent{ContactID: contactID, Message: *msg}),
			event(bus.KindMessagesChanged, contactID),
		}, nil
	})
	return translated, err
}

func (m *Manager) count(sender types.Sender) {
	if m.opts.Counter != nil {
		m.opts.Counter.MessageAdded(string(sender))
	}
}
