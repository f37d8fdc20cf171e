package session

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/audio"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability/metrics"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

// DefaultMaxBufferedBytes bounds the pre-connection audio buffer per track.
const DefaultMaxBufferedBytes = 5 * 1024 * 1024

// ErrBufferOverflow reports that a track queued more audio than allowed
// before its downstream connection opened.
var ErrBufferOverflow = errors.New("session: pre-connection audio buffer overflow")

// Sender is the downstream audio sink of one track, satisfied by
// *asr.Connector.
type Sender interface {
	Send(payload []byte) error
}

// TrackSession owns gap detection, anchor state and audio buffering for one
// media track. All methods must be called from the owning call session's
// event loop; the type holds no locks.
type TrackSession struct {
	track  transcript.Track
	sender Sender
	logger zerolog.Logger

	state  State
	padder audio.Padder
	anchor Anchor

	buffer        [][]byte
	bufferedBytes int
	maxBuffered   int

	lastSourceTsMs int64
	haveLastTs     bool

	err error
}

// NewTrackSession creates a track session in the Buffering state, queueing
// audio until the downstream connection signals open.
func NewTrackSession(track transcript.Track, sender Sender, maxBufferedBytes int, logger zerolog.Logger) *TrackSession {
	if maxBufferedBytes <= 0 {
		maxBufferedBytes = DefaultMaxBufferedBytes
	}
	return &TrackSession{
		track:       track,
		sender:      sender,
		logger:      logger.With().Str("track", string(track)).Logger(),
		state:       StateBuffering,
		padder:      audio.NewPadder(),
		maxBuffered: maxBufferedBytes,
	}
}

// State returns the current lifecycle state.
func (t *TrackSession) State() State {
	return t.state
}

// Err returns the failure cause when the track is in the Failed state.
func (t *TrackSession) Err() error {
	return t.err
}

// Anchor exposes the track's epoch anchor.
func (t *TrackSession) Anchor() *Anchor {
	return &t.anchor
}

// HandleFrame processes one inbound audio frame: establishes the anchor on
// the first frame, pads transmission gaps with silence, and forwards or
// buffers the audio. nowEpochSec is the wall-clock arrival time in epoch
// seconds.
func (t *TrackSession) HandleFrame(sourceTimestampMs int64, payload []byte, nowEpochSec float64) {
	if t.state.IsTerminal() || t.state == StateDraining {
		return
	}

	t.anchor.Set(nowEpochSec, sourceTimestampMs)

	if t.haveLastTs {
		pad, err := t.padder.Pad(t.lastSourceTsMs, sourceTimestampMs)
		if err != nil {
			// Continuity is sacrificed rather than buffering an oversized
			// fill. Reported, not fatal.
			t.logger.Warn().
				Int64("lastTs", t.lastSourceTsMs).
				Int64("newTs", sourceTimestampMs).
				Msg("gap exceeds padding cap, skipping silence fill")
			metrics.Default.RecordPaddingOverflow(string(t.track))
		} else if pad != nil {
			metrics.Default.RecordPaddingBytes(string(t.track), len(pad))
			t.forward(pad)
		}
	}
	t.lastSourceTsMs = sourceTimestampMs
	t.haveLastTs = true

	t.forward(payload)
}

// forward sends audio downstream or queues it while buffering, preserving
// order.
func (t *TrackSession) forward(payload []byte) {
	switch t.state {
	case StateBuffering:
		if t.bufferedBytes+len(payload) > t.maxBuffered {
			t.Fail(fmt.Errorf("%w: %d bytes queued, cap %d", ErrBufferOverflow, t.bufferedBytes+len(payload), t.maxBuffered))
			return
		}
		t.buffer = append(t.buffer, payload)
		t.bufferedBytes += len(payload)
	case StateStreaming:
		if err := t.sender.Send(payload); err != nil {
			t.Fail(fmt.Errorf("session: send: %w", err))
		}
	}
}

// OnOpened handles the downstream-connection-open signal: buffered frames
// are flushed in original arrival order, exactly once, before any newly
// arriving frame.
func (t *TrackSession) OnOpened() {
	if t.state != StateBuffering {
		return
	}
	t.state = StateStreaming
	for _, payload := range t.buffer {
		if err := t.sender.Send(payload); err != nil {
			t.Fail(fmt.Errorf("session: buffered flush: %w", err))
			return
		}
	}
	t.buffer = nil
	t.bufferedBytes = 0
	t.logger.Debug().Msg("downstream open, buffered audio flushed")
}

// BeginDrain signals end-of-audio downstream with a zero-length frame and
// enters the Draining state. Results decoded during the grace window are
// still accepted by the call session.
func (t *TrackSession) BeginDrain() {
	if t.state != StateStreaming && t.state != StateBuffering {
		return
	}
	if t.state == StateStreaming {
		if err := t.sender.Send([]byte{}); err != nil {
			t.Fail(fmt.Errorf("session: end-of-audio: %w", err))
			return
		}
	} else {
		// The connection never opened; the buffered audio cannot be
		// transcribed.
		t.buffer = nil
		t.bufferedBytes = 0
	}
	t.state = StateDraining
}

// OnClosed records the downstream close acknowledgment.
func (t *TrackSession) OnClosed() {
	if t.state.IsTerminal() {
		return
	}
	t.state = StateClosed
}

// Fail marks the track failed and discards any buffered audio. Failures are
// session-scoped; other tracks continue.
func (t *TrackSession) Fail(err error) {
	if t.state.IsTerminal() {
		return
	}
	t.buffer = nil
	t.bufferedBytes = 0
	t.state = StateFailed
	t.err = err
	t.logger.Error().Err(err).Msg("track failed")
	metrics.Default.RecordTrackFailure(string(t.track))
}

// Annotate converts a result's recognizer-relative word timestamps to
// recording-relative time using the track's anchor and the call's recording
// start epoch. It returns false when the anchor is not yet established, in
// which case the result must be dropped (an expected transient, not an
// error).
func (t *TrackSession) Annotate(res *transcript.Result, recordingStartEpochSec float64) bool {
	if !t.anchor.Ready() {
		return false
	}
	offset := transcript.OffsetBetween(t.anchor.Epoch(), recordingStartEpochSec)
	for i := range res.Words {
		w := &res.Words[i]
		w.StartTime = w.StartTime.Add(offset)
		w.EndTime = w.EndTime.Add(offset)
		w.OffsetInRecording = roundMs(w.StartTime.Float())
	}
	res.ResultEndTime = res.ResultEndTime.Add(offset)
	return true
}

// roundMs rounds fractional seconds to millisecond precision.
func roundMs(sec float64) float64 {
	return math.Round(sec*1000) / 1000
}
