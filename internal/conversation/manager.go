// Package conversation owns contacts, per-contact message lists, the blocked
// set and the user profile, and drives the send → deliver → reply flow.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/outbox"
	"github.com/matheus3301/bossmsg/internal/persist"
	"github.com/matheus3301/bossmsg/internal/seed"
	"github.com/matheus3301/bossmsg/internal/types"
)

var (
	ErrNoActiveContact = errors.New("no active contact")
	ErrBlocked         = errors.New("contact is blocked")
	ErrUnknownContact  = errors.New("unknown contact")
	ErrUnknownMessage  = errors.New("unknown message")
	ErrEmptyMessage    = errors.New("empty message")
	ErrClosed          = errors.New("conversation manager closed")
)

// Replier streams a simulated contact reply.
type Replier interface {
	StreamReply(ctx context.Context, message, contactName string) <-chan string
}

// Translator translates message text. It reports failures through its
// return value, never through an error.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) string
}

// Counter receives message counts. The metrics package implements it.
type Counter interface {
	MessageAdded(sender string)
}

// MessageEvent is the payload of message.added and message.updated.
type MessageEvent struct {
	ContactID string        `json:"contactId"`
	Message   types.Message `json:"message"`
}

// TypingEvent is the payload of message.typing.
type TypingEvent struct {
	ContactID string `json:"contactId"`
	Typing    bool   `json:"typing"`
}

// Options tunes a Manager.
type Options struct {
	DeliveryDelay     time.Duration
	TranslateLanguage string
	Now               func() time.Time
	NewID             func() string
	Counter           Counter
}

// Manager applies every conversation mutation through a single path that
// always merges into the latest state.
type Manager struct {
	mu     sync.Mutex
	state  State
	closed bool

	opts       Options
	replier    Replier
	translator Translator
	sched      *outbox.Scheduler
	bus        *bus.Bus
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a manager. Slices present in snap win over the seed data.
func New(opts Options, data *seed.Data, snap persist.Snapshot, r Replier, t Translator, b *bus.Bus, logger *zap.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.TranslateLanguage == "" {
		opts.TranslateLanguage = "Bengali"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:       opts,
		replier:    r,
		translator: t,
		sched:      outbox.NewScheduler(),
		bus:        b,
		logger:     logger.Named("conversation"),
		ctx:        ctx,
		cancel:     cancel,
	}
	m.state = initialState(data, snap)
	return m
}

func initialState(data *seed.Data, snap persist.Snapshot) State {
	s := State{
		Messages: map[string][]types.Message{},
		Blocked:  []string{},
		Profile:  types.DefaultProfile(),
		Typing:   map[string]bool{},
	}
	if data != nil {
		s.Contacts = slices.Clone(data.Contacts)
		s.Profile = data.Profile
	}
	if snap.Contacts != nil {
		s.Contacts = slices.Clone(snap.Contacts)
	}
	if snap.Messages != nil {
		for k, v := range snap.Messages {
			s.Messages[k] = cloneMessages(v)
			// A translation in flight when the daemon stopped will never
			// complete.
			for i := range s.Messages[k] {
				s.Messages[k][i].Translating = false
			}
		}
	}
	if snap.Blocked != nil {
		for _, id := range snap.Blocked {
			if s.contact(id) != nil && !s.isBlocked(id) {
				s.Blocked = append(s.Blocked, id)
			}
		}
	}
	if snap.Profile != nil {
		s.Profile = *snap.Profile
	}
	if s.Contacts == nil {
		s.Contacts = []types.Contact{}
	}
	return s
}

// apply runs fn on the latest state under the lock and publishes the
// events it returns once the lock is released.
func (m *Manager) apply(fn func(s *State) ([]bus.Event, error)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	events, err := fn(&m.state)
	m.mu.Unlock()

	now := m.opts.Now()
	for _, e := range events {
		e.Timestamp = now
		m.bus.Publish(e)
	}
	return err
}

func event(kind string, payload any) bus.Event {
	return bus.Event{Kind: kind, Payload: payload}
}

// Snapshot returns the persisted slices of the current state.
func (m *Manager) Snapshot() persist.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state.clone()
	return persist.Snapshot{
		Contacts: s.Contacts,
		Messages: s.Messages,
		Blocked:  s.Blocked,
		Profile:  &s.Profile,
	}
}

// State returns a deep copy of the whole state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Contacts lists contacts whose name contains query, case-insensitively.
func (m *Manager) Contacts(query string) []types.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []types.Contact{}
	for _, c := range m.state.Contacts {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}

// Contact returns one contact.
func (m *Manager) Contact(id string) (types.Contact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.state.contact(id); c != nil {
		return *c, true
	}
	return types.Contact{}, false
}

// Messages returns a copy of the conversation with contactID.
func (m *Manager) Messages(contactID string) []types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMessages(m.state.Messages[contactID])
}

// Typing reports whether contactID is composing a reply.
func (m *Manager) Typing(contactID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Typing[contactID]
}

// Active returns the active contact id, or "".
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Active
}

// Select makes contactID the active conversation and clears its unread
// counter. An empty id closes the active conversation.
func (m *Manager) Select(contactID string) error {
	return m.apply(func(s *State) ([]bus.Event, error) {
		if contactID == "" {
			s.Active = ""
			return nil, nil
		}
		c := s.contact(contactID)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContact, contactID)
		}
		s.Active = contactID
		if c.UnreadCount == 0 {
			return nil, nil
		}
		c.UnreadCount = 0
		return []bus.Event{event(bus.KindContactsChanged, *c)}, nil
	})
}

// AddContact appends a new contact to the list.
func (m *Manager) AddContact(name, avatar string) (types.Contact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Contact{}, errors.New("contact name is required")
	}
	c := types.Contact{ID: m.opts.NewID(), Name: name, Avatar: avatar}
	err := m.apply(func(s *State) ([]bus.Event, error) {
		s.Contacts = append(s.Contacts, c)
		return []bus.Event{event(bus.KindContactsChanged, c)}, nil
	})
	return c, err
}

// Close cancels pending delivery timers and reply consumers and waits for
// them to exit. No mutation applies afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.sched.Stop()
	m.wg.Wait()
}
