// Package seed provides the built-in contacts, stories and profile a fresh
// session starts with.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matheus3301/bossmsg/internal/types"
)

//go:embed seed.yaml
var raw []byte

type file struct {
	Profile  types.Profile `yaml:"profile"`
	Contacts []contact     `yaml:"contacts"`
	Stories  []story       `yaml:"stories"`
}

type contact struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Avatar      string `yaml:"avatar"`
	Online      bool   `yaml:"online"`
	Unread      int    `yaml:"unread"`
	LastMessage string `yaml:"last_message"`
}

type story struct {
	ID        string          `yaml:"id"`
	UserID    string          `yaml:"user_id"`
	MediaURL  string          `yaml:"media_url"`
	MediaKind types.MediaKind `yaml:"media_kind"`
	Caption   string          `yaml:"caption"`
	Age       time.Duration   `yaml:"age"`
}

// Data is the decoded seed set.
type Data struct {
	Profile  types.Profile
	Contacts []types.Contact
	Stories  []types.Story
}

// Load decodes the embedded seed set. Story timestamps are relative to now.
func Load(now time.Time) (*Data, error) {
	return parse(raw, now)
}

// MustLoad is Load for callers that treat a broken embedded file as a bug.
func MustLoad(now time.Time) *Data {
	d, err := Load(now)
	if err != nil {
		panic(err)
	}
	return d
}

func parse(b []byte, now time.Time) (*Data, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	d := &Data{Profile: f.Profile}
	byID := make(map[string]types.Contact, len(f.Contacts))
	for _, c := range f.Contacts {
		tc := types.Contact{
			ID:          c.ID,
			Name:        c.Name,
			Avatar:      c.Avatar,
			Online:      c.Online,
			UnreadCount: c.Unread,
			LastMessage: c.LastMessage,
		}
		d.Contacts = append(d.Contacts, tc)
		byID[c.ID] = tc
	}
	for _, s := range f.Stories {
		owner, ok := byID[s.UserID]
		if !ok {
			return nil, fmt.Errorf("seed story %s: unknown user %q", s.ID, s.UserID)
		}
		d.Stories = append(d.Stories, types.Story{
			ID:         s.ID,
			UserID:     s.UserID,
			UserName:   owner.Name,
			UserAvatar: owner.Avatar,
			MediaURL:   s.MediaURL,
			MediaKind:  s.MediaKind,
			Caption:    s.Caption,
			Timestamp:  now.Add(-s.Age),
			Replies:    []types.StoryReply{},
		})
	}
	return d, nil
}
