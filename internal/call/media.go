package call

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"
	"time"
)

// AudioSource captures microphone frames.
type AudioSource interface {
	// Read fills buf with the next samples and returns how many were
	// written. It blocks for roughly the real-time length of the frame.
	Read(ctx context.Context, buf []float32) (int, error)
	Close() error
}

// AudioSink plays decoded buffers.
type AudioSink interface {
	Write(samples []float32) error
	Close() error
}

// FrameSource captures camera stills.
type FrameSource interface {
	Frame() (image.Image, error)
	Close() error
}

// Devices opens the local media of a call.
type Devices interface {
	Microphone() (AudioSource, error)
	Camera() (FrameSource, error)
	Speaker() (AudioSink, error)
}

// DeviceConfig names the files backing the local devices. Empty values
// select a silent microphone, a discarding speaker and a test-pattern
// camera.
type DeviceConfig struct {
	Input  string
	Output string
	Camera string
}

// LocalDevices opens devices backed by files, FIFOs or synthetic sources.
type LocalDevices struct {
	cfg DeviceConfig
}

// NewDevices returns devices for cfg.
func NewDevices(cfg DeviceConfig) *LocalDevices {
	return &LocalDevices{cfg: cfg}
}

// Microphone opens the input device.
func (d *LocalDevices) Microphone() (AudioSource, error) {
	if d.cfg.Input == "" {
		return NewSilence(InputRate), nil
	}
	f, err := os.Open(d.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	return &pcmFileSource{f: f, r: bufio.NewReader(f), rate: InputRate}, nil
}

// Camera opens the snapshot camera.
func (d *LocalDevices) Camera() (FrameSource, error) {
	if d.cfg.Camera == "" {
		return PatternCamera(640, 480), nil
	}
	cam := &SnapshotCamera{Path: d.cfg.Camera}
	if _, err := cam.Frame(); err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	return cam, nil
}

// Speaker opens the output device.
func (d *LocalDevices) Speaker() (AudioSink, error) {
	if d.cfg.Output == "" {
		return Discard{}, nil
	}
	f, err := os.OpenFile(d.cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open speaker: %w", err)
	}
	return &pcmFileSink{f: f}, nil
}

// Silence is a microphone producing zero samples in real time.
type Silence struct {
	rate   int
	closed chan struct{}
	once   sync.Once
}

// NewSilence returns a silent source at rate.
func NewSilence(rate int) *Silence {
	return &Silence{rate: rate, closed: make(chan struct{})}
}

func (s *Silence) Read(ctx context.Context, buf []float32) (int, error) {
	t := time.NewTimer(SamplesDuration(len(buf), s.rate))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.closed:
		return 0, io.EOF
	case <-t.C:
	}
	clear(buf)
	return len(buf), nil
}

func (s *Silence) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// pcmFileSource reads raw 16-bit little-endian mono PCM, paced to real
// time so a regular file behaves like a live device.
type pcmFileSource struct {
	f    *os.File
	r    *bufio.Reader
	rate int
	raw  []byte
}

func (s *pcmFileSource) Read(ctx context.Context, buf []float32) (int, error) {
	start := time.Now()
	if cap(s.raw) < 2*len(buf) {
		s.raw = make([]byte, 2*len(buf))
	}
	raw := s.raw[:2*len(buf)]
	n, err := io.ReadFull(s.r, raw)
	if n < 2 {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	samples := n / 2
	for i := range samples {
		buf[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	wait := SamplesDuration(samples, s.rate) - time.Since(start)
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	return samples, nil
}

func (s *pcmFileSource) Close() error { return s.f.Close() }

// Discard drops every buffer.
type Discard struct{}

func (Discard) Write([]float32) error { return nil }
func (Discard) Close() error          { return nil }

// pcmFileSink appends raw 16-bit little-endian PCM to a file.
type pcmFileSink struct {
	mu sync.Mutex
	f  *os.File
}

func (s *pcmFileSink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.f.Write(EncodePCM16(samples))
	return err
}

func (s *pcmFileSink) Close() error { return s.f.Close() }

// SnapshotCamera re-reads an image file for every frame, so an external
// tool can keep replacing it.
type SnapshotCamera struct {
	Path string
}

func (c *SnapshotCamera) Frame() (image.Image, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	return img, err
}

func (c *SnapshotCamera) Close() error { return nil }

type pattern struct{ img image.Image }

// PatternCamera returns a camera showing a fixed colour gradient.
func PatternCamera(w, h int) FrameSource {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 0x84, A: 0xff})
		}
	}
	return pattern{img: img}
}

func (p pattern) Frame() (image.Image, error) { return p.img, nil }
func (p pattern) Close() error                { return nil }
