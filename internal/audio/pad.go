// Package audio provides gap padding for the 8 kHz mu-law media stream.
package audio

import "errors"

const (
	// DefaultFrameDurationMs is the nominal duration of one media frame.
	DefaultFrameDurationMs = 20

	// bytesPerMs for 8 kHz, 1 byte per sample audio.
	bytesPerMs = 8

	// MaxPaddingBytes bounds a single synthetic silence fill. Gaps larger
	// than this are skipped rather than buffered.
	MaxPaddingBytes = 10_000_000
)

// ErrPaddingOverflow reports a transmission gap whose silence fill would
// exceed MaxPaddingBytes. The gap is not padded; the session continues.
var ErrPaddingOverflow = errors.New("audio: padding gap exceeds byte cap")

// Padder computes synthetic silence for source-timestamp gaps on one track.
type Padder struct {
	FrameDurationMs int64
	MaxBytes        int
}

// NewPadder returns a Padder with the default frame duration and byte cap.
func NewPadder() Padder {
	return Padder{FrameDurationMs: DefaultFrameDurationMs, MaxBytes: MaxPaddingBytes}
}

// Pad returns zero-valued silence bytes covering the gap between the last
// seen source timestamp and a new one. It returns nil when the frames are
// contiguous (gap <= one frame duration) and ErrPaddingOverflow when the
// fill would exceed the byte cap.
func (p Padder) Pad(lastTimestampMs, newTimestampMs int64) ([]byte, error) {
	gap := newTimestampMs - lastTimestampMs
	if gap <= p.FrameDurationMs {
		return nil, nil
	}
	missingMs := gap - p.FrameDurationMs
	n := missingMs * bytesPerMs
	if n > int64(p.MaxBytes) {
		return nil, ErrPaddingOverflow
	}
	return make([]byte, n), nil
}
