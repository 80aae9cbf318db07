package story

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var errNoMovieHeader = errors.New("no mvhd box")

// VideoDuration reads the playback length of an MP4 or QuickTime file from
// its movie header. Other containers report errNoMovieHeader.
func VideoDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return movieDuration(f, info.Size())
}

func movieDuration(r io.ReadSeeker, size int64) (time.Duration, error) {
	moov, moovSize, err := findBox(r, 0, size, "moov")
	if err != nil {
		return 0, err
	}
	mvhd, mvhdSize, err := findBox(r, moov, moov+moovSize, "mvhd")
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(mvhd, io.SeekStart); err != nil {
		return 0, err
	}
	var version [4]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return 0, err
	}

	var timescale, duration uint64
	switch version[0] {
	case 0:
		var h [16]byte
		if mvhdSize < 20 {
			return 0, errNoMovieHeader
		}
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return 0, err
		}
		timescale = uint64(binary.BigEndian.Uint32(h[8:12]))
		duration = uint64(binary.BigEndian.Uint32(h[12:16]))
	case 1:
		var h [28]byte
		if mvhdSize < 32 {
			return 0, errNoMovieHeader
		}
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return 0, err
		}
		timescale = uint64(binary.BigEndian.Uint32(h[16:20]))
		duration = binary.BigEndian.Uint64(h[20:28])
	default:
		return 0, fmt.Errorf("mvhd version %d", version[0])
	}
	if timescale == 0 {
		return 0, errNoMovieHeader
	}
	return time.Duration(duration) * time.Second / time.Duration(timescale), nil
}

// findBox scans the boxes in [start, end) for typ and returns the offset
// and length of its payload.
func findBox(r io.ReadSeeker, start, end int64, typ string) (int64, int64, error) {
	for off := start; off+8 <= end; {
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return 0, 0, err
		}
		var h [16]byte
		if _, err := io.ReadFull(r, h[:8]); err != nil {
			return 0, 0, err
		}
		size := int64(binary.BigEndian.Uint32(h[:4]))
		header := int64(8)
		switch size {
		case 0:
			size = end - off
		case 1:
			if _, err := io.ReadFull(r, h[8:16]); err != nil {
				return 0, 0, err
			}
			size = int64(binary.BigEndian.Uint64(h[8:16]))
			header = 16
		}
		if size < header || off+size > end {
			return 0, 0, fmt.Errorf("box %q at %d: bad size %d", h[4:8], off, size)
		}
		if string(h[4:8]) == typ {
			return off + header, size - header, nil
		}
		off += size
	}
	return 0, 0, errNoMovieHeader
}
