// Package call runs a simulated call: local media capture is streamed to a
// live AI session and its spoken answers are played back gap-free.
package call

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"math"
	"time"

	"golang.org/x/image/draw"
)

const (
	// FrameSamples is the size of one captured audio frame.
	FrameSamples = 4096
	// InputRate is the capture sample rate sent to the live session.
	InputRate = 16000
	// OutputRate is the sample rate of the session's spoken answers.
	OutputRate = 24000

	InputMimeType = "audio/pcm;rate=16000"
	VideoMimeType = "image/jpeg"

	VideoWidth   = 320
	VideoHeight  = 240
	VideoQuality = 40
)

// EncodePCM16 converts samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clipped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		v = max(min(v, math.MaxInt16), math.MinInt16)
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian PCM to samples in [-1, 1). A
// trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return out
}

// SamplesDuration is the playing time of n samples at rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// EncodeFrame scales a camera frame to 320x240 and compresses it as JPEG.
func EncodeFrame(img image.Image) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, VideoWidth, VideoHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: VideoQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
