package call

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/ai"
	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/outbox"
	"github.com/matheus3301/bossmsg/internal/status"
	"github.com/matheus3301/bossmsg/internal/types"
)

var (
	ErrCallActive      = errors.New("a call is already active")
	ErrNoCall          = errors.New("no active call")
	ErrAlreadyInCall   = errors.New("contact is already in the call")
	ErrUnsupportedKind = errors.New("unsupported call kind")
)

// Counter receives call lifecycle counts. The metrics package implements it.
type Counter interface {
	CallStarted(kind string)
	CallEnded()
}

// Options tunes the orchestrator.
type Options struct {
	InviteDelay   time.Duration
	VideoInterval time.Duration
	Model         string
	Now           func() time.Time
	Counter       Counter
}

// Orchestrator owns the single call session.
type Orchestrator struct {
	mu      sync.Mutex
	sess    *session
	seq     uint64
	machine *status.Machine

	dialer  ai.LiveDialer
	devices Devices
	bus     *bus.Bus
	opts    Options
	logger  *zap.Logger
}

type session struct {
	id      uint64
	kind    types.CallKind
	contact types.Contact

	// guarded by Orchestrator.mu
	active       bool
	connected    bool
	startedAt    time.Time
	endedAt      time.Time
	participants []types.Contact
	pending      []types.Contact
	mic          AudioSource
	cam          FrameSource
	speaker      AudioSink
	conn         ai.LiveConn
	playback     *Playback

	muted    atomic.Bool
	videoOff atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	invites *outbox.Scheduler
	wg      sync.WaitGroup
}

// New creates an idle orchestrator.
func New(dialer ai.LiveDialer, devices Devices, b *bus.Bus, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.InviteDelay <= 0 {
		opts.InviteDelay = 4 * time.Second
	}
	if opts.VideoInterval <= 0 {
		opts.VideoInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		machine: status.NewMachine(b),
		dialer:  dialer,
		devices: devices,
		bus:     b,
		opts:    opts,
		logger:  logger.Named("call"),
	}
}

// Start places a call to contact. It returns once the session is in the
// calling stage; media capture and the live session are set up in the
// background and any failure there ends the call.
func (o *Orchestrator) Start(contact types.Contact, kind types.CallKind) (types.CallState, error) {
	if kind != types.CallAudio && kind != types.CallVideo {
		return types.CallState{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	o.mu.Lock()
	if o.sess != nil && o.sess.active {
		o.mu.Unlock()
		return types.CallState{}, ErrCallActive
	}
	if err := o.machine.Transition(status.Calling); err != nil {
		o.mu.Unlock()
		return types.CallState{}, err
	}
	o.seq++
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:           o.seq,
		kind:         kind,
		contact:      contact,
		active:       true,
		participants: []types.Contact{contact},
		ctx:          ctx,
		cancel:       cancel,
		invites:      outbox.NewScheduler(),
	}
	o.sess = s
	st := o.stateLocked()
	o.mu.Unlock()

	if o.opts.Counter != nil {
		o.opts.Counter.CallStarted(string(kind))
	}
	o.logger.Info("call started", zap.String("contact_id", contact.ID), zap.String("kind", string(kind)))
	o.bus.Emit(bus.KindCallUpdated, st)

	s.wg.Add(1)
	go o.connect(s)
	return st, nil
}

// connect acquires the local media, opens the live session and starts the
// media loops.
func (o *Orchestrator) connect(s *session) {
	defer s.wg.Done()

	var (
		mic     AudioSource
		cam     FrameSource
		speaker AudioSink
		conn    ai.LiveConn
	)
	release := func() error {
		var err error
		for _, c := range []io.Closer{mic, cam, speaker, conn} {
			if c != nil {
				err = multierr.Append(err, c.Close())
			}
		}
		return err
	}
	fail := func(err error) {
		err = multierr.Append(err, release())
		o.teardown(s, err)
	}

	var err error
	if mic, err = o.devices.Microphone(); err != nil {
		fail(err)
		return
	}
	if s.kind == types.CallVideo {
		if cam, err = o.devices.Camera(); err != nil {
			fail(err)
			return
		}
	}
	if speaker, err = o.devices.Speaker(); err != nil {
		fail(err)
		return
	}

	o.mu.Lock()
	instruction := fmt.Sprintf("Group call with %d people. Speak concisely.", len(s.participants)+1)
	o.mu.Unlock()
	conn, err = o.dialer.Dial(s.ctx, ai.LiveConfig{Model: o.opts.Model, SystemInstruction: instruction})
	if err != nil {
		fail(fmt.Errorf("dial live session: %w", err))
		return
	}

	o.mu.Lock()
	if !s.active {
		o.mu.Unlock()
		if err := release(); err != nil {
			o.logger.Warn("release media of ended call", zap.Error(err))
		}
		return
	}
	s.mic, s.cam, s.speaker, s.conn = mic, cam, speaker, conn
	s.playback = NewPlayback(speaker, OutputRate, o.logger)
	s.connected = true
	s.startedAt = o.opts.Now()
	if err := o.machine.Transition(status.Connected); err != nil {
		o.logger.Warn("connect call", zap.Error(err))
	}
	st := o.stateLocked()
	o.mu.Unlock()

	o.logger.Info("call connected", zap.String("contact_id", s.contact.ID))
	o.bus.Emit(bus.KindCallUpdated, st)

	s.wg.Add(2)
	go o.sendAudio(s, mic, conn)
	go o.receive(s, conn, s.playback)
	if cam != nil {
		s.wg.Add(1)
		go o.sendVideo(s, cam, conn)
	}
}

func (o *Orchestrator) isActive(s *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return s.active
}

// sendAudio streams microphone frames. Muted frames are captured and
// dropped so the session stays open.
func (o *Orchestrator) sendAudio(s *session, mic AudioSource, conn ai.LiveConn) {
	defer s.wg.Done()
	buf := make([]float32, FrameSamples)
	for {
		n, err := mic.Read(s.ctx, buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				o.logger.Info("microphone input ended")
				return
			}
			o.teardown(s, fmt.Errorf("microphone: %w", err))
			return
		}
		if s.muted.Load() || !o.isActive(s) {
			continue
		}
		if err := conn.Send(s.ctx, ai.Blob{MimeType: InputMimeType, Data: EncodePCM16(buf[:n])}); err != nil {
			if s.ctx.Err() == nil {
				o.teardown(s, fmt.Errorf("send audio: %w", err))
			}
			return
		}
	}
}

// sendVideo sends a downsampled camera still every interval unless video
// is off. Mute does not apply here.
func (o *Orchestrator) sendVideo(s *session, cam FrameSource, conn ai.LiveConn) {
	defer s.wg.Done()
	ticker := time.NewTicker(o.opts.VideoInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		if s.videoOff.Load() || !o.isActive(s) {
			continue
		}
		img, err := cam.Frame()
		if err != nil {
			o.logger.Warn("capture frame", zap.Error(err))
			continue
		}
		data, err := EncodeFrame(img)
		if err != nil {
			o.logger.Warn("encode frame", zap.Error(err))
			continue
		}
		if err := conn.Send(s.ctx, ai.Blob{MimeType: VideoMimeType, Data: data}); err != nil {
			if s.ctx.Err() == nil {
				o.teardown(s, fmt.Errorf("send video: %w", err))
			}
			return
		}
	}
}

// receive plays the session's audio until it closes. A remote close ends
// the call.
func (o *Orchestrator) receive(s *session, conn ai.LiveConn, pb *Playback) {
	defer s.wg.Done()
	for {
		msg, err := conn.Recv(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, ai.ErrLiveClosed) {
				o.logger.Info("live session closed by remote")
				o.teardown(s, nil)
				return
			}
			o.teardown(s, fmt.Errorf("receive: %w", err))
			return
		}
		if !o.isActive(s) {
			return
		}
		for _, chunk := range msg.Audio {
			pb.Schedule(DecodePCM16(chunk))
		}
	}
}

// teardown ends s. The session is marked inactive before anything is
// released so pending callbacks see it as ended; every release step runs
// whatever the earlier ones returned.
func (o *Orchestrator) teardown(s *session, cause error) {
	o.mu.Lock()
	if !s.active {
		o.mu.Unlock()
		return
	}
	s.active = false
	s.endedAt = o.opts.Now()
	s.pending = nil
	mic, cam, speaker, conn, pb := s.mic, s.cam, s.speaker, s.conn, s.playback
	o.mu.Unlock()

	s.cancel()
	s.invites.Stop()

	var err error
	if mic != nil {
		err = multierr.Append(err, mic.Close())
	}
	if cam != nil {
		err = multierr.Append(err, cam.Close())
	}
	if conn != nil {
		err = multierr.Append(err, conn.Close())
	}
	if pb != nil {
		pb.Stop()
	}
	if speaker != nil {
		err = multierr.Append(err, speaker.Close())
	}

	o.mu.Lock()
	if terr := o.machine.Transition(status.Ended); terr != nil {
		o.logger.Warn("end call", zap.Error(terr))
	}
	st := o.stateLocked()
	o.mu.Unlock()

	if o.opts.Counter != nil {
		o.opts.Counter.CallEnded()
	}
	fields := []zap.Field{zap.String("contact_id", s.contact.ID)}
	if cause != nil {
		fields = append(fields, zap.NamedError("cause", cause))
	}
	for _, e := range multierr.Errors(err) {
		o.logger.Warn("release call resource", zap.Error(e))
	}
	o.logger.Info("call ended", fields...)
	o.bus.Emit(bus.KindCallUpdated, st)
}

// End hangs up and waits for every call goroutine to exit.
func (o *Orchestrator) End() error {
	o.mu.Lock()
	s := o.sess
	if s == nil || !s.active {
		o.mu.Unlock()
		return ErrNoCall
	}
	o.mu.Unlock()
	o.teardown(s, nil)
	s.wg.Wait()
	return nil
}

// Close ends any active call and waits for the last session to wind down.
func (o *Orchestrator) Close() {
	_ = o.End()
	o.mu.Lock()
	s := o.sess
	o.mu.Unlock()
	if s != nil {
		s.wg.Wait()
	}
}

func (o *Orchestrator) active() (*session, error) {
	if o.sess == nil || !o.sess.active {
		return nil, ErrNoCall
	}
	return o.sess, nil
}

// Mute stops or resumes sending microphone frames.
func (o *Orchestrator) Mute(muted bool) (types.CallState, error) {
	return o.update(func(s *session) error {
		s.muted.Store(muted)
		return nil
	})
}

// SetVideoOff stops or resumes sending camera frames.
func (o *Orchestrator) SetVideoOff(off bool) (types.CallState, error) {
	return o.update(func(s *session) error {
		s.videoOff.Store(off)
		return nil
	})
}

// Invite adds contact to the pending set. After the invite delay it joins
// the roster, unless the call has ended by then.
func (o *Orchestrator) Invite(contact types.Contact) (types.CallState, error) {
	return o.update(func(s *session) error {
		same := func(c types.Contact) bool { return c.ID == contact.ID }
		if slices.ContainsFunc(s.participants, same) || slices.ContainsFunc(s.pending, same) {
			return ErrAlreadyInCall
		}
		s.pending = append(s.pending, contact)
		s.invites.After(contact.ID, o.opts.InviteDelay, func() { o.accept(s, contact.ID) })
		return nil
	})
}

func (o *Orchestrator) accept(s *session, id string) {
	o.mu.Lock()
	if !s.active {
		o.mu.Unlock()
		return
	}
	i := slices.IndexFunc(s.pending, func(c types.Contact) bool { return c.ID == id })
	if i < 0 {
		o.mu.Unlock()
		return
	}
	s.participants = append(s.participants, s.pending[i])
	s.pending = slices.Delete(s.pending, i, i+1)
	st := o.stateLocked()
	o.mu.Unlock()

	o.logger.Info("participant joined", zap.String("contact_id", id))
	o.bus.Emit(bus.KindCallUpdated, st)
}

func (o *Orchestrator) update(fn func(*session) error) (types.CallState, error) {
	o.mu.Lock()
	s, err := o.active()
	if err == nil {
		err = fn(s)
	}
	if err != nil {
		o.mu.Unlock()
		return types.CallState{}, err
	}
	st := o.stateLocked()
	o.mu.Unlock()
	o.bus.Emit(bus.KindCallUpdated, st)
	return st, nil
}

// State returns the current call, or the last one once it has ended.
func (o *Orchestrator) State() types.CallState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() types.CallState {
	s := o.sess
	if s == nil {
		return types.CallState{Status: o.machine.Current()}
	}
	st := types.CallState{
		Active:       s.active,
		Kind:         s.kind,
		Contact:      s.contact,
		Status:       o.machine.Current(),
		StartedAt:    s.startedAt,
		Participants: slices.Clone(s.participants),
		Pending:      slices.Clone(s.pending),
		Muted:        s.muted.Load(),
		VideoOff:     s.videoOff.Load(),
	}
	if s.connected {
		end := s.endedAt
		if s.active {
			end = o.opts.Now()
		}
		st.Elapsed = end.Sub(s.startedAt).Truncate(time.Second)
	}
	if st.Pending == nil {
		st.Pending = []types.Contact{}
	}
	return st
}
