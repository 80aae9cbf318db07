package persist

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/store"
	"github.com/matheus3301/bossmsg/internal/types"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, _, err := store.OpenMigrated(filepath.Join(t.TempDir(), "boss.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleSnapshot() Snapshot {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return Snapshot{
		Contacts: []types.Contact{{ID: "1", Name: "Boss Anik", UnreadCount: 2}},
		Messages: map[string][]types.Message{
			"1": {{ID: "m1", Text: "Hello", Sender: types.SenderUser, Timestamp: ts, Status: types.StatusDelivered}},
		},
		Blocked: []string{"2"},
		Profile: &types.Profile{Name: "Chief", About: "busy"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	a := NewAdapter(testDB(t), nil)
	want := sampleSnapshot()
	a.Save(want)

	got := a.Load()
	assert.Equal(t, want.Contacts, got.Contacts)
	assert.Equal(t, want.Blocked, got.Blocked)
	assert.Equal(t, *want.Profile, *got.Profile)
	require.Len(t, got.Messages["1"], 1)
	assert.True(t, want.Messages["1"][0].Timestamp.Equal(got.Messages["1"][0].Timestamp))
	assert.Equal(t, types.StatusDelivered, got.Messages["1"][0].Status)
}

func TestLoadEmptyStoreLeavesSlicesAbsent(t *testing.T) {
	got := NewAdapter(testDB(t), nil).Load()
	assert.Nil(t, got.Contacts)
	assert.Nil(t, got.Messages)
	assert.Nil(t, got.Blocked)
	assert.Nil(t, got.Profile)
}

func TestKeysAreNamespaced(t *testing.T) {
	db := testDB(t)
	NewAdapter(db, nil).Save(sampleSnapshot())

	keys, err := db.SnapshotKeys(Prefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"boss_massager_v1_contacts",
		"boss_massager_v1_messages",
		"boss_massager_v1_blocked",
		"boss_massager_v1_user_profile",
	}, keys)
}

func TestLoadReconstitutesEpochTimestamps(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.PutSnapshot(SliceMessages.Key(),
		[]byte(`{"1":[{"id":"a","text":"x","sender":"ai","timestamp":1700000000000,"status":"read"},{"id":"b","text":"y","sender":"user","timestamp":"1700000001000","status":"sent"}]}`)))

	got := NewAdapter(db, nil).Load()
	require.Len(t, got.Messages["1"], 2)
	assert.Equal(t, time.UnixMilli(1700000000000), got.Messages["1"][0].Timestamp)
	assert.Equal(t, time.UnixMilli(1700000001000), got.Messages["1"][1].Timestamp)
}

func TestCorruptSliceIsLoggedAndSkipped(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.PutSnapshot(SliceContacts.Key(), []byte(`{not json`)))
	require.NoError(t, db.PutSnapshot(SliceBlocked.Key(), []byte(`["3"]`)))

	core, logs := observer.New(zap.WarnLevel)
	got := NewAdapter(db, zap.New(core)).Load()

	assert.Nil(t, got.Contacts)
	assert.Equal(t, []string{"3"}, got.Blocked)
	assert.Equal(t, 1, logs.FilterMessage("discarding unreadable snapshot").Len())
}

type failingKV struct{}

func (failingKV) PutSnapshots(map[string][]byte) error { return errors.New("disk full") }
func (failingKV) GetSnapshot(string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}

func TestBackendFailuresDoNotPropagate(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	a := NewAdapter(failingKV{}, zap.New(core))

	a.Save(sampleSnapshot())
	got := a.Load()

	assert.Nil(t, got.Contacts)
	assert.Equal(t, 1, logs.FilterMessage("write snapshot").Len())
	assert.Equal(t, len(AllSlices), logs.FilterMessage("read snapshot").Len())
}

type recordingKV struct {
	mu     sync.Mutex
	writes []map[string][]byte
}

func (r *recordingKV) PutSnapshots(e map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, e)
	return nil
}

func (r *recordingKV) GetSnapshot(string) ([]byte, bool, error) { return nil, false, nil }

func (r *recordingKV) keys() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, w := range r.writes {
		for k := range w {
			out[k] = true
		}
	}
	return out
}

type staticSource struct{ snap Snapshot }

func (s staticSource) Snapshot() Snapshot { return s.snap }

func TestSyncerWritesChangedSlices(t *testing.T) {
	kv := &recordingKV{}
	b := bus.New()
	s := NewSyncer(NewAdapter(kv, nil), staticSource{sampleSnapshot()}, b, nil)
	s.Start(t.Context())

	b.Emit(bus.KindBlockedChanged, nil)
	b.Emit(bus.KindCallUpdated, nil) // not a state event

	require.Eventually(t, func() bool { return kv.keys()[SliceBlocked.Key()] }, time.Second, 10*time.Millisecond)
	assert.False(t, kv.keys()[SliceContacts.Key()])

	s.Stop()
	keys := kv.keys()
	for _, sl := range AllSlices {
		assert.True(t, keys[sl.Key()], "final flush missing %s", sl)
	}
	s.Stop() // idempotent
}

// gatedKV blocks every write until the gate is closed.
type gatedKV struct {
	recordingKV
	gate chan struct{}
}

func (g *gatedKV) PutSnapshots(e map[string][]byte) error {
	<-g.gate
	return g.recordingKV.PutSnapshots(e)
}

func TestSyncerKeepsLastChangeOfBurst(t *testing.T) {
	kv := &gatedKV{gate: make(chan struct{})}
	b := bus.New()
	s := NewSyncer(NewAdapter(kv, nil), staticSource{sampleSnapshot()}, b, nil)
	s.Start(t.Context())
	defer s.Stop()

	// The first flush is stuck on the store while the burst arrives.
	for range 5000 {
		b.Emit(bus.KindMessagesChanged, "1")
	}
	b.Emit(bus.KindProfileChanged, nil)
	close(kv.gate)

	require.Eventually(t, func() bool { return kv.keys()[SliceProfile.Key()] }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, kv.keys()[SliceMessages.Key()])
	assert.Zero(t, b.Dropped())

	kv.mu.Lock()
	writes := len(kv.writes)
	kv.mu.Unlock()
	assert.Less(t, writes, 10, "burst should coalesce")
}
