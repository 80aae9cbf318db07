// Package persist saves and restores the chat state snapshot.
//
// The snapshot is split into four namespaced entries (contacts, messages,
// blocked ids, user profile) so that a change to one slice rewrites only
// that entry. Storage and decode failures are logged and swallowed: the
// in-memory state stays authoritative for the session.
package persist

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/types"
)

// Prefix namespaces every key this package writes.
const Prefix = "boss_massager_v1_"

// Slice names one persisted entry.
type Slice string

const (
	SliceContacts Slice = "contacts"
	SliceMessages Slice = "messages"
	SliceBlocked  Slice = "blocked"
	SliceProfile  Slice = "user_profile"
)

// AllSlices lists every persisted entry in write order.
var AllSlices = []Slice{SliceContacts, SliceMessages, SliceBlocked, SliceProfile}

// Key returns the storage key of s.
func (s Slice) Key() string { return Prefix + string(s) }

// Snapshot is the persisted part of the application state. On load a nil
// field means the entry was never written or could not be decoded.
type Snapshot struct {
	Contacts []types.Contact
	Messages map[string][]types.Message
	Blocked  []string
	Profile  *types.Profile
}

// KV is the durable key/value backend.
type KV interface {
	PutSnapshots(entries map[string][]byte) error
	GetSnapshot(key string) ([]byte, bool, error)
}

// Adapter maps snapshots onto a KV backend.
type Adapter struct {
	kv     KV
	logger *zap.Logger
}

// NewAdapter creates an adapter over kv.
func NewAdapter(kv KV, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{kv: kv, logger: logger.Named("persist")}
}

// Save writes every slice of snap.
func (a *Adapter) Save(snap Snapshot) {
	a.SaveSlices(snap, AllSlices...)
}

// SaveSlices writes the named slices of snap in a single batch.
func (a *Adapter) SaveSlices(snap Snapshot, slices ...Slice) {
	entries := make(map[string][]byte, len(slices))
	for _, s := range slices {
		b, err := encode(snap, s)
		if err != nil {
			a.logger.Error("encode snapshot", zap.String("slice", string(s)), zap.Error(err))
			continue
		}
		entries[s.Key()] = b
	}
	if len(entries) == 0 {
		return
	}
	if err := a.kv.PutSnapshots(entries); err != nil {
		a.logger.Error("write snapshot", zap.Int("entries", len(entries)), zap.Error(err))
	}
}

// Load reads every slice. Entries that are missing or fail to decode are
// left nil.
func (a *Adapter) Load() Snapshot {
	var snap Snapshot
	for _, s := range AllSlices {
		raw, ok, err := a.kv.GetSnapshot(s.Key())
		if err != nil {
			a.logger.Error("read snapshot", zap.String("slice", string(s)), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := decode(raw, s, &snap); err != nil {
			a.logger.Warn("discarding unreadable snapshot", zap.String("slice", string(s)), zap.Error(err))
		}
	}
	return snap
}

func encode(snap Snapshot, s Slice) ([]byte, error) {
	switch s {
	case SliceContacts:
		return json.Marshal(nonNil(snap.Contacts))
	case SliceMessages:
		msgs := snap.Messages
		if msgs == nil {
			msgs = map[string][]types.Message{}
		}
		return json.Marshal(msgs)
	case SliceBlocked:
		return json.Marshal(nonNil(snap.Blocked))
	case SliceProfile:
		p := types.DefaultProfile()
		if snap.Profile != nil {
			p = *snap.Profile
		}
		return json.Marshal(p)
	}
	return nil, fmt.Errorf("unknown slice %q", s)
}

func decode(raw []byte, s Slice, snap *Snapshot) error {
	switch s {
	case SliceContacts:
		var v []types.Contact
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		snap.Contacts = nonNil(v)
	case SliceMessages:
		v, err := decodeMessages(raw)
		if err != nil {
			return err
		}
		snap.Messages = v
	case SliceBlocked:
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		snap.Blocked = nonNil(v)
	case SliceProfile:
		var p types.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		snap.Profile = &p
	default:
		return fmt.Errorf("unknown slice %q", s)
	}
	return nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
