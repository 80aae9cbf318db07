package conversation

import (
	"slices"

	"github.com/matheus3301/bossmsg/internal/types"
)

// State is the conversation state owned by the Manager. It is only mutated
// inside Manager.apply.
type State struct {
	Contacts []types.Contact
	Messages map[string][]types.Message
	Blocked  []string
	Profile  types.Profile
	Active   string
	Typing   map[string]bool
}

func (s *State) contact(id string) *types.Contact {
	for i := range s.Contacts {
		if s.Contacts[i].ID == id {
			return &s.Contacts[i]
		}
	}
	return nil
}

func (s *State) message(contactID, msgID string) *types.Message {
	msgs := s.Messages[contactID]
	for i := range msgs {
		if msgs[i].ID == msgID {
			return &msgs[i]
		}
	}
	return nil
}

func (s *State) isBlocked(id string) bool {
	return slices.Contains(s.Blocked, id)
}

func (s *State) appendMessage(contactID string, m types.Message) {
	s.Messages[contactID] = append(s.Messages[contactID], m)
}

// clone returns a deep copy safe to hand to other goroutines.
func (s *State) clone() State {
	out := State{
		Contacts: slices.Clone(s.Contacts),
		Messages: make(map[string][]types.Message, len(s.Messages)),
		Blocked:  slices.Clone(s.Blocked),
		Profile:  s.Profile,
		Active:   s.Active,
		Typing:   make(map[string]bool, len(s.Typing)),
	}
	for k, v := range s.Messages {
		out.Messages[k] = cloneMessages(v)
	}
	for k, v := range s.Typing {
		out.Typing[k] = v
	}
	return out
}

func cloneMessages(in []types.Message) []types.Message {
	out := slices.Clone(in)
	for i := range out {
		if out[i].File != nil {
			f := *out[i].File
			if f.Location != nil {
				loc := *f.Location
				f.Location = &loc
			}
			out[i].File = &f
		}
	}
	return out
}
