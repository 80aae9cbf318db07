// Package story holds the status stories: the catalogue of my and seeded
// stories, the inbox that turns dropped media files into stories, and the
// timing engine that drives the story viewer.
package story

import (
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/bossmsg/internal/types"
)

// State is the viewer's playback state.
type State string

const (
	Playing   State = "playing"
	Paused    State = "paused"
	Advancing State = "advancing"
	Closed    State = "closed"
)

// Side is the half of the view a press landed on.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

// Frame is what the view renders for one update.
type Frame struct {
	Index    int
	Count    int
	Progress float64
	State    State
	Story    types.Story
}

// Options configures a Viewer.
type Options struct {
	ImageDuration  time.Duration
	PressThreshold time.Duration
}

// DefaultOptions returns five-second images and a 250ms tap threshold.
func DefaultOptions() Options {
	return Options{
		ImageDuration:  5 * time.Second,
		PressThreshold: 250 * time.Millisecond,
	}
}

// Viewer is the per-group playback state machine. Time is passed in by the
// caller so the engine is deterministic; Player supplies wall-clock ticks.
type Viewer struct {
	mu   sync.Mutex
	opts Options

	stories  []types.Story
	index    int
	state    State
	duration time.Duration
	progress float64

	// startedAt is the virtual start of the current item: now-startedAt is
	// the elapsed playback time while playing.
	startedAt time.Time
	// elapsed is the playback time frozen at the last pause.
	elapsed time.Duration

	pressed     bool
	pressAt     time.Time
	repliesOpen bool
}

// NewViewer starts playing stories[start] at now. An empty group yields a
// closed viewer.
func NewViewer(stories []types.Story, start int, opts Options, now time.Time) *Viewer {
	if opts.ImageDuration <= 0 {
		opts.ImageDuration = DefaultOptions().ImageDuration
	}
	if opts.PressThreshold <= 0 {
		opts.PressThreshold = DefaultOptions().PressThreshold
	}
	v := &Viewer{opts: opts, stories: slices.Clone(stories), state: Playing}
	if len(stories) == 0 {
		v.state = Closed
		return v
	}
	if start < 0 || start >= len(stories) {
		start = 0
	}
	v.enter(start, now)
	return v
}

// enter resets timing for item i and resumes or stays paused depending on
// the hold flags.
func (v *Viewer) enter(i int, now time.Time) {
	v.index = i
	v.progress = 0
	v.elapsed = 0
	v.startedAt = now
	v.duration = v.opts.ImageDuration
	if s := v.stories[i]; s.MediaKind == types.MediaVideo && s.MediaDuration > 0 {
		v.duration = s.MediaDuration
	}
	if v.held() {
		v.state = Paused
	} else {
		v.state = Playing
	}
}

func (v *Viewer) held() bool { return v.pressed || v.repliesOpen }

func (v *Viewer) frame() Frame {
	f := Frame{Index: v.index, Count: len(v.stories), Progress: v.progress, State: v.state}
	if v.index < len(v.stories) {
		f.Story = v.stories[v.index]
	}
	return f
}

// Frame returns the current frame without advancing time.
func (v *Viewer) Frame() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame()
}

// Tick is the per-frame update. While playing it recomputes progress from
// the elapsed time and, on reaching 100, advances to the next item or
// closes after the last one.
func (v *Viewer) Tick(now time.Time) Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != Playing {
		return v.frame()
	}
	elapsed := now.Sub(v.startedAt)
	p := min(float64(elapsed)/float64(v.duration)*100, 100)
	if p > v.progress {
		v.progress = p
	}
	if v.progress >= 100 {
		v.state = Advancing
		v.next(now)
	}
	return v.frame()
}

func (v *Viewer) next(now time.Time) {
	if v.index+1 >= len(v.stories) {
		v.state = Closed
		return
	}
	v.enter(v.index+1, now)
}

func (v *Viewer) prev(now time.Time) {
	if v.index == 0 {
		return
	}
	v.enter(v.index-1, now)
}

// pause freezes elapsed time; callers hold the lock.
func (v *Viewer) pause(now time.Time) {
	if v.state != Playing {
		return
	}
	v.elapsed = now.Sub(v.startedAt)
	if p := min(float64(v.elapsed)/float64(v.duration)*100, 100); p > v.progress {
		v.progress = p
	}
	v.state = Paused
}

// resume continues from the frozen offset; callers hold the lock.
func (v *Viewer) resume(now time.Time) {
	if v.state != Paused || v.held() {
		return
	}
	v.startedAt = now.Add(-v.elapsed)
	v.state = Playing
}

// Press starts a pointer hold: playback pauses and the press time is
// recorded.
func (v *Viewer) Press(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Closed {
		return
	}
	v.pause(now)
	v.pressed = true
	v.pressAt = now
}

// Release ends a hold. A hold shorter than the press threshold on a side
// navigates (left: previous, right: next); otherwise playback resumes from
// the offset captured at Press.
func (v *Viewer) Release(now time.Time, side Side) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Closed || !v.pressed {
		return
	}
	v.pressed = false
	if now.Sub(v.pressAt) < v.opts.PressThreshold {
		switch side {
		case SideLeft:
			if v.index > 0 {
				v.prev(now)
				return
			}
		case SideRight:
			v.next(now)
			return
		}
	}
	v.resume(now)
}

// Next skips to the next item, closing after the last.
func (v *Viewer) Next(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Closed {
		return
	}
	v.next(now)
}

// Prev goes back one item. It is a no-op on the first item.
func (v *Viewer) Prev(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Closed {
		return
	}
	v.prev(now)
}

// SetMediaDuration records the clip length once video metadata is known and
// restarts timing of the current item from zero.
func (v *Viewer) SetMediaDuration(d time.Duration, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Closed || d <= 0 {
		return
	}
	v.stories[v.index].MediaDuration = d
	v.enter(v.index, now)
}

// SetRepliesOpen pauses playback while the replies panel is shown.
func (v *Viewer) SetRepliesOpen(open bool, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == Closed || v.repliesOpen == open {
		return
	}
	v.repliesOpen = open
	if open {
		v.pause(now)
	} else {
		v.resume(now)
	}
}

// Close halts the viewer. Every later call is a no-op.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = Closed
}
