package call

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/outbox"
)

// Playback schedules decoded buffers back to back: each buffer starts when
// the previous one ends, or immediately if the queue has drained.
type Playback struct {
	mu    sync.Mutex
	sink  AudioSink
	rate  int
	sched *outbox.Scheduler
	now   func() time.Time
	next  time.Time
	seq   uint64

	logger *zap.Logger
}

// NewPlayback plays into sink at rate.
func NewPlayback(sink AudioSink, rate int, logger *zap.Logger) *Playback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Playback{sink: sink, rate: rate, sched: outbox.NewScheduler(), now: time.Now, logger: logger}
}

// Schedule queues samples and returns their start time. Empty buffers and
// buffers queued after Stop are dropped.
func (p *Playback) Schedule(samples []float32) (time.Time, bool) {
	if len(samples) == 0 {
		return time.Time{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if p.next.Before(now) {
		p.next = now
	}
	start := p.next
	p.seq++
	ok := p.sched.After(strconv.FormatUint(p.seq, 10), start.Sub(now), func() {
		if err := p.sink.Write(samples); err != nil {
			p.logger.Warn("play buffer", zap.Error(err))
		}
	})
	if !ok {
		return time.Time{}, false
	}
	p.next = start.Add(SamplesDuration(len(samples), p.rate))
	return start, true
}

// Pending returns the number of buffers not yet started.
func (p *Playback) Pending() int { return p.sched.Pending() }

// Stop drops every queued buffer and waits for one being played.
func (p *Playback) Stop() { p.sched.Stop() }
