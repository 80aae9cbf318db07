package call

import (
	"bytes"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1}
	out := DecodePCM16(EncodePCM16(in))
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1.0/32768, "sample %d", i)
	}
}

func TestPCM16Clips(t *testing.T) {
	b := EncodePCM16([]float32{2, -2})
	assert.Equal(t, []byte{0xff, 0x7f, 0x00, 0x80}, b)
	assert.Len(t, DecodePCM16([]byte{1, 2, 3}), 1)
}

func TestSamplesDuration(t *testing.T) {
	assert.Equal(t, 256*time.Millisecond, SamplesDuration(FrameSamples, InputRate))
	assert.Equal(t, time.Second, SamplesDuration(OutputRate, OutputRate))
	assert.Zero(t, SamplesDuration(10, 0))
}

type orderedSink struct {
	mu    sync.Mutex
	order []int
}

func (s *orderedSink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, len(samples))
	return nil
}

func (s *orderedSink) Close() error { return nil }

func TestPlaybackSchedulesBackToBack(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPlayback(Discard{}, 1000, nil)
	p.now = func() time.Time { return now }
	defer p.Stop()

	s1, ok := p.Schedule(make([]float32, 500))
	require.True(t, ok)
	s2, _ := p.Schedule(make([]float32, 250))
	s3, _ := p.Schedule(make([]float32, 100))
	assert.Equal(t, now, s1)
	assert.Equal(t, now.Add(500*time.Millisecond), s2)
	assert.Equal(t, now.Add(750*time.Millisecond), s3)

	// Once the queue has drained the next buffer starts immediately.
	now = now.Add(5 * time.Second)
	s4, _ := p.Schedule(make([]float32, 10))
	assert.Equal(t, now, s4)

	_, ok = p.Schedule(nil)
	assert.False(t, ok)
}

func TestPlaybackPlaysInOrder(t *testing.T) {
	sink := &orderedSink{}
	p := NewPlayback(sink, 1000, nil)
	for i := 1; i <= 5; i++ {
		p.Schedule(make([]float32, 10*i))
	}
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.order) == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, sink.order)
	p.Stop()
}

func TestPlaybackStopDropsQueued(t *testing.T) {
	sink := &orderedSink{}
	p := NewPlayback(sink, 10, nil)
	p.Schedule(make([]float32, 10))
	p.Schedule(make([]float32, 10))
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	assert.Zero(t, p.Pending())
	time.Sleep(20 * time.Millisecond)
	sink.mu.Lock()
	assert.Len(t, sink.order, 1)
	sink.mu.Unlock()

	_, ok := p.Schedule(make([]float32, 10))
	assert.False(t, ok)
}

func TestEncodeFrameSize(t *testing.T) {
	img, err := PatternCamera(64, 48).Frame()
	require.NoError(t, err)

	data, err := EncodeFrame(img)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, VideoWidth, cfg.Width)
	assert.Equal(t, VideoHeight, cfg.Height)
}

func TestCameraWithoutSnapshotUsesPattern(t *testing.T) {
	cam, err := NewDevices(DeviceConfig{}).Camera()
	require.NoError(t, err)
	_, ok := cam.(pattern)
	assert.True(t, ok, "camera = %T", cam)

	img, err := cam.Frame()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())
}
