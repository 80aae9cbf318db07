package story

import (
	"context"
	"sync"
	"time"
)

// Player drives a Viewer with wall-clock ticks and reports every frame.
type Player struct {
	viewer   *Viewer
	interval time.Duration
	onFrame  func(Frame)
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewPlayer creates a player ticking every interval. onFrame is called from
// the player goroutine.
func NewPlayer(v *Viewer, interval time.Duration, onFrame func(Frame)) *Player {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Player{viewer: v, interval: interval, onFrame: onFrame, now: time.Now}
}

// Viewer returns the driven viewer.
func (p *Player) Viewer() *Viewer { return p.viewer }

// Start begins ticking until the viewer closes or ctx is done.
func (p *Player) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx)
}

func (p *Player) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f := p.viewer.Tick(p.now())
			if ctx.Err() != nil {
				return
			}
			if p.onFrame != nil {
				p.onFrame(f)
			}
			if f.State == Closed {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop closes the viewer and returns once the tick goroutine has exited, so
// no frame is reported after Stop returns.
func (p *Player) Stop() {
	p.once.Do(func() {
		p.viewer.Close()
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
}

// Done is closed when the tick goroutine exits.
func (p *Player) Done() <-chan struct{} { return p.done }
