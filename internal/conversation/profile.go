package conversation

import (
	"fmt"
	"strings"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/types"
)

// Block adds contactID to the blocked set. Blocking twice is a no-op.
func (m *Manager) Block(contactID string) error {
	return m.apply(func(s *State) ([]bus.Event, error) {
		if s.contact(contactID) == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContact, contactID)
		}
		if s.isBlocked(contactID) {
			return nil, nil
		}
		s.Blocked = append(s.Blocked, contactID)
		return []bus.Event{event(bus.KindBlockedChanged, contactID)}, nil
	})
}

// Unblock removes contactID from the blocked set.
func (m *Manager) Unblock(contactID string) error {
	return m.apply(func(s *State) ([]bus.Event, error) {
		for i, id := range s.Blocked {
			if id == contactID {
				s.Blocked = append(s.Blocked[:i], s.Blocked[i+1:]...)
				return []bus.Event{event(bus.KindBlockedChanged, contactID)}, nil
			}
		}
		return nil, nil
	})
}

// IsBlocked reports whether contactID is blocked.
func (m *Manager) IsBlocked(contactID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.isBlocked(contactID)
}

// Blocked returns the blocked contacts in contact-list order.
func (m *Manager) Blocked() []types.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.Contact{}
	for _, c := range m.state.Contacts {
		if m.state.isBlocked(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// Profile returns the user profile.
func (m *Manager) Profile() types.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Profile
}

// ProfileUpdate carries the fields to change; nil fields are kept.
type ProfileUpdate struct {
	Name   *string
	About  *string
	Avatar *string
}

// UpdateProfile applies u. An empty name is rejected.
func (m *Manager) UpdateProfile(u ProfileUpdate) (types.Profile, error) {
	var out types.Profile
	err := m.apply(func(s *State) ([]bus.Event, error) {
		p := s.Profile
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return nil, fmt.Errorf("profile name cannot be empty")
			}
			p.Name = name
		}
		if u.About != nil {
			p.About = strings.TrimSpace(*u.About)
		}
		if u.Avatar != nil {
			p.Avatar = strings.TrimSpace(*u.Avatar)
		}
		out = p
		if p == s.Profile {
			return nil, nil
		}
		s.Profile = p
		return []bus.Event{event(bus.KindProfileChanged, p)}, nil
	})
	return out, err
}
