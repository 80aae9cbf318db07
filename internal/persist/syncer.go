package persist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/bus"
)

// Source yields the current state to persist.
type Source interface {
	Snapshot() Snapshot
}

// Syncer writes the changed slices whenever the state publishes a change.
// It watches "state.*" events on the bus. Changes are recorded as dirty
// slices, so a burst coalesces into one write and none is lost.
type Syncer struct {
	adapter *Adapter
	source  Source
	bus     *bus.Bus
	logger  *zap.Logger

	mu    sync.Mutex
	dirty map[Slice]bool
	wake  chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSyncer creates a syncer. Call Start to begin persisting.
func NewSyncer(a *Adapter, src Source, b *bus.Bus, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		adapter: a,
		source:  src,
		bus:     b,
		logger:  logger.Named("syncer"),
		dirty:   map[Slice]bool{},
		wake:    make(chan struct{}, 1),
	}
}

// Start watches state change events.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	unwatch := s.bus.Watch("state.", s.mark)

	go func() {
		defer close(s.done)
		defer unwatch()
		for {
			select {
			case <-s.wake:
				s.flush(s.takeDirty())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the syncer and writes a final full snapshot.
func (s *Syncer) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.adapter.Save(s.source.Snapshot())
		s.logger.Debug("final snapshot written")
	})
}

// mark runs inline from Publish.
func (s *Syncer) mark(evt bus.Event) {
	sl, ok := sliceOf(evt.Kind)
	if !ok {
		return
	}
	s.mu.Lock()
	s.dirty[sl] = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Syncer) takeDirty() map[Slice]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = map[Slice]bool{}
	return d
}

func (s *Syncer) flush(dirty map[Slice]bool) {
	slices := make([]Slice, 0, len(dirty))
	for _, sl := range AllSlices {
		if dirty[sl] {
			slices = append(slices, sl)
		}
	}
	if len(slices) == 0 {
		return
	}
	s.adapter.SaveSlices(s.source.Snapshot(), slices...)
}

func sliceOf(kind string) (Slice, bool) {
	switch kind {
	case bus.KindContactsChanged:
		return SliceContacts, true
	case bus.KindMessagesChanged:
		return SliceMessages, true
	case bus.KindBlockedChanged:
		return SliceBlocked, true
	case bus.KindProfileChanged:
		return SliceProfile, true
	}
	return "", false
}
