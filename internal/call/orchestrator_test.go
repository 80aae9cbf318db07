package call

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/bossmsg/internal/ai"
	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/types"
)

type fakeConn struct {
	mu       sync.Mutex
	sent     []ai.Blob
	recv     chan ai.LiveMessage
	done     chan struct{}
	once     sync.Once
	closed   atomic.Bool
	closeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{recv: make(chan ai.LiveMessage, 8), done: make(chan struct{})}
}

func (c *fakeConn) Send(_ context.Context, b ai.Blob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, b)
	return nil
}

func (c *fakeConn) Recv(ctx context.Context) (ai.LiveMessage, error) {
	select {
	case <-ctx.Done():
		return ai.LiveMessage{}, ctx.Err()
	case <-c.done:
		return ai.LiveMessage{}, ai.ErrLiveClosed
	case m := <-c.recv:
		return m, nil
	}
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	c.once.Do(func() { close(c.done) })
	return c.closeErr
}

func (c *fakeConn) count(mime string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.sent {
		if b.MimeType == mime {
			n++
		}
	}
	return n
}

type fakeDialer struct {
	conn *fakeConn
	err  error
	cfg  chan ai.LiveConfig
}

func (d *fakeDialer) Dial(ctx context.Context, cfg ai.LiveConfig) (ai.LiveConn, error) {
	if d.cfg != nil {
		d.cfg <- cfg
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type tone struct {
	closed atomic.Bool
	err    error
}

func (t *tone) Read(ctx context.Context, buf []float32) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(2 * time.Millisecond):
	}
	for i := range buf {
		buf[i] = 0.25
	}
	return len(buf), nil
}

func (t *tone) Close() error { t.closed.Store(true); return nil }

type recordSink struct {
	mu      sync.Mutex
	written int
	closed  atomic.Bool
}

func (s *recordSink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written += len(samples)
	return nil
}

func (s *recordSink) Close() error { s.closed.Store(true); return nil }

func (s *recordSink) samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

type fakeCamera struct{ closed atomic.Bool }

func (c *fakeCamera) Frame() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}
func (c *fakeCamera) Close() error { c.closed.Store(true); return nil }

type fakeDevices struct {
	mic     *tone
	cam     *fakeCamera
	speaker *recordSink
	micErr  error
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{mic: &tone{}, cam: &fakeCamera{}, speaker: &recordSink{}}
}

func (d *fakeDevices) Microphone() (AudioSource, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}
func (d *fakeDevices) Camera() (FrameSource, error) { return d.cam, nil }
func (d *fakeDevices) Speaker() (AudioSink, error)  { return d.speaker, nil }

type callCounter struct {
	started, ended atomic.Int32
}

func (c *callCounter) CallStarted(string) { c.started.Add(1) }
func (c *callCounter) CallEnded()         { c.ended.Add(1) }

var (
	boss   = types.Contact{ID: "1", Name: "Boss Anik"}
	tanvir = types.Contact{ID: "2", Name: "Tanvir"}
)

func newOrchestrator(t *testing.T, d ai.LiveDialer, devs Devices) (*Orchestrator, *callCounter) {
	t.Helper()
	cc := &callCounter{}
	o := New(d, devs, bus.New(), Options{
		InviteDelay:   40 * time.Millisecond,
		VideoInterval: 10 * time.Millisecond,
		Counter:       cc,
	}, nil)
	t.Cleanup(o.Close)
	return o, cc
}

func waitStatus(t *testing.T, o *Orchestrator, want types.CallStatus) {
	t.Helper()
	require.Eventually(t, func() bool { return o.State().Status == want }, 2*time.Second, 5*time.Millisecond)
}

func TestCallConnectsAndStreamsAudio(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conn: conn, cfg: make(chan ai.LiveConfig, 1)}
	o, cc := newOrchestrator(t, d, newFakeDevices())

	st, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)
	assert.Equal(t, types.CallCalling, st.Status)
	assert.True(t, st.Active)
	assert.Equal(t, []types.Contact{boss}, st.Participants)

	cfg := <-d.cfg
	assert.Equal(t, "Group call with 2 people. Speak concisely.", cfg.SystemInstruction)

	waitStatus(t, o, types.CallConnected)
	require.Eventually(t, func() bool { return conn.count(InputMimeType) >= 2 }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	frame := conn.sent[0].Data
	conn.mu.Unlock()
	assert.Len(t, frame, 2*FrameSamples)
	assert.Zero(t, conn.count(VideoMimeType), "audio calls send no video")
	assert.EqualValues(t, 1, cc.started.Load())
}

func TestCallRejectsSecondSession(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeDialer{conn: newFakeConn()}, newFakeDevices())
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)
	_, err = o.Start(tanvir, types.CallVideo)
	assert.ErrorIs(t, err, ErrCallActive)

	_, err = o.Start(tanvir, types.CallKind("hologram"))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestMuteSuppressesAudioOnly(t *testing.T) {
	conn := newFakeConn()
	o, _ := newOrchestrator(t, &fakeDialer{conn: conn}, newFakeDevices())
	_, err := o.Start(boss, types.CallVideo)
	require.NoError(t, err)
	waitStatus(t, o, types.CallConnected)

	st, err := o.Mute(true)
	require.NoError(t, err)
	assert.True(t, st.Muted)
	time.Sleep(10 * time.Millisecond)

	audio, video := conn.count(InputMimeType), conn.count(VideoMimeType)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, audio, conn.count(InputMimeType), "muted call sent audio")
	assert.Greater(t, conn.count(VideoMimeType), video, "mute must not stop video")
	assert.True(t, o.State().Active)

	_, err = o.SetVideoOff(true)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	video = conn.count(VideoMimeType)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, video, conn.count(VideoMimeType))

	_, err = o.Mute(false)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return conn.count(InputMimeType) > audio }, time.Second, 5*time.Millisecond)
}

func TestVideoFramesAreDownsampledJPEG(t *testing.T) {
	conn := newFakeConn()
	o, _ := newOrchestrator(t, &fakeDialer{conn: conn}, newFakeDevices())
	_, err := o.Start(boss, types.CallVideo)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return conn.count(VideoMimeType) > 0 }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	var frame []byte
	for _, b := range conn.sent {
		if b.MimeType == VideoMimeType {
			frame = b.Data
			break
		}
	}
	conn.mu.Unlock()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, VideoWidth, cfg.Width)
	assert.Equal(t, VideoHeight, cfg.Height)
}

func TestInviteJoinsAfterDelay(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeDialer{conn: newFakeConn()}, newFakeDevices())
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)

	st, err := o.Invite(tanvir)
	require.NoError(t, err)
	assert.Equal(t, []types.Contact{tanvir}, st.Pending)
	assert.Len(t, st.Participants, 1)

	_, err = o.Invite(tanvir)
	assert.ErrorIs(t, err, ErrAlreadyInCall)
	_, err = o.Invite(boss)
	assert.ErrorIs(t, err, ErrAlreadyInCall)

	require.Eventually(t, func() bool { return len(o.State().Participants) == 2 }, time.Second, 5*time.Millisecond)
	st = o.State()
	assert.Empty(t, st.Pending)
	assert.Equal(t, tanvir, st.Participants[1])
}

func TestInviteDiscardedAfterHangUp(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeDialer{conn: newFakeConn()}, newFakeDevices())
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)
	_, err = o.Invite(tanvir)
	require.NoError(t, err)

	require.NoError(t, o.End())
	time.Sleep(80 * time.Millisecond)

	st := o.State()
	assert.False(t, st.Active)
	assert.Equal(t, types.CallEnded, st.Status)
	assert.Equal(t, []types.Contact{boss}, st.Participants)
	assert.Empty(t, st.Pending)

	_, err = o.Invite(tanvir)
	assert.ErrorIs(t, err, ErrNoCall)
	assert.ErrorIs(t, o.End(), ErrNoCall)
}

func TestEndReleasesEverything(t *testing.T) {
	conn := newFakeConn()
	conn.closeErr = errors.New("already gone")
	devs := newFakeDevices()
	o, cc := newOrchestrator(t, &fakeDialer{conn: conn}, devs)
	_, err := o.Start(boss, types.CallVideo)
	require.NoError(t, err)
	waitStatus(t, o, types.CallConnected)

	require.NoError(t, o.End())
	assert.True(t, conn.closed.Load())
	assert.True(t, devs.mic.closed.Load())
	assert.True(t, devs.cam.closed.Load())
	assert.True(t, devs.speaker.closed.Load())
	assert.EqualValues(t, 1, cc.ended.Load())

	audio, video := conn.count(InputMimeType), conn.count(VideoMimeType)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, audio, conn.count(InputMimeType), "audio sent after hang-up")
	assert.Equal(t, video, conn.count(VideoMimeType), "video sent after hang-up")

	// A new call may start after the previous one ended.
	st, err := o.Start(tanvir, types.CallAudio)
	require.NoError(t, err)
	assert.Equal(t, types.CallCalling, st.Status)
}

func TestRemoteCloseEndsCall(t *testing.T) {
	conn := newFakeConn()
	o, _ := newOrchestrator(t, &fakeDialer{conn: conn}, newFakeDevices())
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)
	waitStatus(t, o, types.CallConnected)

	conn.once.Do(func() { close(conn.done) })
	waitStatus(t, o, types.CallEnded)
	assert.False(t, o.State().Active)
}

func TestMediaFailureEndsCall(t *testing.T) {
	devs := newFakeDevices()
	devs.micErr = errors.New("permission denied")
	o, cc := newOrchestrator(t, &fakeDialer{conn: newFakeConn()}, devs)
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)

	waitStatus(t, o, types.CallEnded)
	assert.False(t, o.State().Active)
	assert.EqualValues(t, 1, cc.ended.Load())
}

func TestDialFailureReleasesMedia(t *testing.T) {
	devs := newFakeDevices()
	o, _ := newOrchestrator(t, &fakeDialer{err: errors.New("refused")}, devs)
	_, err := o.Start(boss, types.CallVideo)
	require.NoError(t, err)

	waitStatus(t, o, types.CallEnded)
	require.Eventually(t, devs.mic.closed.Load, time.Second, 5*time.Millisecond)
	assert.True(t, devs.cam.closed.Load())
	assert.True(t, devs.speaker.closed.Load())
}

func TestReceivedAudioIsPlayed(t *testing.T) {
	conn := newFakeConn()
	devs := newFakeDevices()
	o, _ := newOrchestrator(t, &fakeDialer{conn: conn}, devs)
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)
	waitStatus(t, o, types.CallConnected)

	conn.recv <- ai.LiveMessage{Audio: [][]byte{EncodePCM16(make([]float32, 240)), EncodePCM16(make([]float32, 240))}}
	require.Eventually(t, func() bool { return devs.speaker.samples() == 480 }, time.Second, 5*time.Millisecond)
}

func TestEndWhileAwaitingLiveSetup(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close() }()
		// Read the setup and never acknowledge it.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	devs := newFakeDevices()
	d := ai.NewWSDialer("ws"+strings.TrimPrefix(srv.URL, "http"), "", nil)
	o, _ := newOrchestrator(t, d, devs)
	_, err := o.Start(boss, types.CallAudio)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- o.End() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("End blocked while the live session awaited setup")
	}
	assert.Equal(t, types.CallEnded, o.State().Status)
	assert.True(t, devs.mic.closed.Load())
	assert.True(t, devs.speaker.closed.Load())
}
