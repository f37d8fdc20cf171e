// Package session implements the live stream synchronization engine: the
// per-track state machine that buffers audio, pads transmission gaps and
// anchors recognizer-relative timestamps to absolute epoch time, and the
// per-call session that accumulates finalized results into a CallRecord.
package session

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/asr"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability/metrics"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

// DefaultDrainGrace bounds how long late transcript events are still
// accepted after call end.
const DefaultDrainGrace = 3 * time.Second

// Connector is the downstream recognizer connection as seen by a call
// session, satisfied by *asr.Connector.
type Connector interface {
	Sender
	Open()
	Close() error
	Events() <-chan asr.Event
}

// ConnectorFactory opens one recognizer connection for a track.
type ConnectorFactory func(track transcript.Track) Connector

// Sink receives the immutable CallRecord exactly once when the call
// finalizes.
type Sink func(record *transcript.CallRecord)

// Config parametrizes one call session.
type Config struct {
	// ID is the stable call-session identifier, supplied at creation.
	ID string
	// Metadata is the session-initialization payload from the media source.
	Metadata transcript.Metadata
	// DrainGrace overrides DefaultDrainGrace when positive.
	DrainGrace time.Duration
	// MaxBufferedBytes bounds each track's pre-connection buffer.
	MaxBufferedBytes int
	// Now overrides the wall clock in tests.
	Now func() time.Time
}

// internal event variants processed by the call loop
type frameEvent struct {
	track     transcript.Track
	timestamp int64
	payload   []byte
}

type asrEvRecv struct {
	track transcript.Track
	event asr.Event
}

type endEvent struct{}

type graceElapsed struct{}

type trackBinding struct {
	session *TrackSession
	conn    Connector
}

// CallSession owns the track sessions of one call and accumulates finalized
// results. All state is confined to the session's event loop goroutine;
// callbacks never run concurrently for the same call.
type CallSession struct {
	id             string
	meta           transcript.Metadata
	flow           string
	recordingStart float64
	connect        ConnectorFactory
	sink           Sink
	logger         zerolog.Logger

	grace       time.Duration
	maxBuffered int
	now         func() time.Time

	events chan any
	done   chan struct{}

	tracks map[transcript.Track]*trackBinding

	results        []transcript.Result
	complete       strings.Builder
	perParticipant map[string]*strings.Builder

	startEpoch int64
	endEpoch   int64
	draining   bool
	finalized  bool
}

// NewCallSession creates a call session and starts its event loop.
func NewCallSession(cfg Config, connect ConnectorFactory, sink Sink, logger zerolog.Logger) *CallSession {
	grace := cfg.DrainGrace
	if grace <= 0 {
		grace = DefaultDrainGrace
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &CallSession{
		id:             cfg.ID,
		meta:           cfg.Metadata,
		flow:           cfg.Metadata.CustomParameters.CallFlowType(),
		recordingStart: cfg.Metadata.CustomParameters.RecordingStartEpoch(),
		connect:        connect,
		sink:           sink,
		logger:         logger.With().Str("callId", cfg.ID).Logger(),
		grace:          grace,
		maxBuffered:    cfg.MaxBufferedBytes,
		now:            now,
		events:         make(chan any, 256),
		done:           make(chan struct{}),
		tracks:         make(map[transcript.Track]*trackBinding),
		perParticipant: make(map[string]*strings.Builder),
	}
	s.startEpoch = s.now().Unix()
	metrics.Default.RecordCallStart()
	go s.run()
	return s
}

// ID returns the stable call-session identifier.
func (s *CallSession) ID() string {
	return s.id
}

// Done is closed once the CallRecord has been emitted.
func (s *CallSession) Done() <-chan struct{} {
	return s.done
}

// HandleFrame ingests one inbound audio frame. Conference flows process
// only the inbound leg; frames for other tracks are ignored.
func (s *CallSession) HandleFrame(track transcript.Track, sourceTimestampMs int64, payload []byte) {
	if !track.Valid() {
		return
	}
	if s.flow == transcript.FlowConference && track != transcript.TrackInbound {
		return
	}
	metrics.Default.RecordFrame(string(track), len(payload))
	s.post(frameEvent{track: track, timestamp: sourceTimestampMs, payload: payload})
}

// End signals call end: tracks drain, and after the grace window the
// CallRecord is emitted exactly once.
func (s *CallSession) End() {
	s.post(endEvent{})
}

// post delivers an event to the loop unless the session already finalized.
func (s *CallSession) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *CallSession) run() {
	for {
		ev := <-s.events
		switch e := ev.(type) {
		case frameEvent:
			s.onFrame(e)
		case asrEvRecv:
			s.onASREvent(e.track, e.event)
		case endEvent:
			s.onEnd()
		case graceElapsed:
			s.finalize()
			return
		}
		if s.finalized {
			return
		}
	}
}

func (s *CallSession) onFrame(e frameEvent) {
	if s.draining {
		return
	}
	tb := s.tracks[e.track]
	if tb == nil {
		tb = s.bindTrack(e.track)
	}
	nowEpoch := float64(s.now().UnixNano()) / 1e9
	tb.session.HandleFrame(e.timestamp, e.payload, nowEpoch)
}

// bindTrack lazily creates the connector and track session on the first
// frame for a previously unseen track.
func (s *CallSession) bindTrack(track transcript.Track) *trackBinding {
	conn := s.connect(track)
	ts := NewTrackSession(track, conn, s.maxBuffered, s.logger)
	tb := &trackBinding{session: ts, conn: conn}
	s.tracks[track] = tb

	go func() {
		for ev := range conn.Events() {
			s.post(asrEvRecv{track: track, event: ev})
		}
	}()
	conn.Open()

	s.logger.Info().Str("track", string(track)).Msg("track session created")
	return tb
}

func (s *CallSession) onASREvent(track transcript.Track, ev asr.Event) {
	tb := s.tracks[track]
	if tb == nil {
		return
	}
	switch ev.Type {
	case asr.EventOpened:
		tb.session.OnOpened()
	case asr.EventFirst:
		s.logger.Info().
			Str("track", string(track)).
			RawJSON("metadata", nonNilJSON(ev.Metadata)).
			Msg("first recognizer event")
	case asr.EventTranscript:
		s.onTranscript(tb, track, ev.Result)
	case asr.EventError:
		// Session-scoped: the affected track fails, the other continues.
		tb.session.Fail(ev.Err)
	case asr.EventClosed:
		tb.session.OnClosed()
		if s.draining && s.allTracksSettled() {
			s.finalize()
		}
	}
}

func (s *CallSession) onTranscript(tb *trackBinding, track transcript.Track, res *transcript.Result) {
	if res == nil {
		return
	}
	if !tb.session.Annotate(res, s.recordingStart) {
		// Expected transient: audio always precedes recognizer output, so
		// the anchor derives from a frame this event postdates.
		metrics.Default.RecordAnchorDrop(string(track))
		s.logger.Debug().Str("track", string(track)).Msg("transcript before anchor, dropped")
		return
	}

	idx := track.Index()
	res.Track = idx
	res.ParticipantLabel = s.meta.CustomParameters.TrackLabel(idx)

	metrics.Default.RecordResult(res.IsFinal)
	if !res.IsFinal {
		return
	}

	s.results = append(s.results, *res)
	s.complete.WriteString(res.Transcript)
	s.complete.WriteString(" ")
	b := s.perParticipant[res.ParticipantLabel]
	if b == nil {
		b = &strings.Builder{}
		s.perParticipant[res.ParticipantLabel] = b
	}
	b.WriteString(res.Transcript)
	b.WriteString(" ")

	s.logger.Info().
		Str("participant", res.ParticipantLabel).
		Str("transcript", res.Transcript).
		Msg("final result")
}

func (s *CallSession) onEnd() {
	if s.draining {
		return
	}
	s.draining = true
	s.endEpoch = s.now().Unix()

	for _, tb := range s.tracks {
		tb.session.BeginDrain()
	}
	if len(s.tracks) == 0 || s.allTracksSettled() {
		s.finalize()
		return
	}
	time.AfterFunc(s.grace, func() {
		s.post(graceElapsed{})
	})
}

// allTracksSettled reports whether every track reached a terminal state.
func (s *CallSession) allTracksSettled() bool {
	for _, tb := range s.tracks {
		if !tb.session.State().IsTerminal() {
			return false
		}
	}
	return true
}

// finalize emits the immutable CallRecord exactly once and closes the
// session.
func (s *CallSession) finalize() {
	if s.finalized {
		return
	}
	s.finalized = true
	if s.endEpoch == 0 {
		s.endEpoch = s.now().Unix()
	}

	for _, tb := range s.tracks {
		if err := tb.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("recognizer close")
		}
	}

	perParticipant := make(map[string]string, len(s.perParticipant))
	for label, b := range s.perParticipant {
		perParticipant[label] = strings.TrimSpace(b.String())
	}

	record := &transcript.CallRecord{
		Transcription:            s.results,
		CompleteTranscription:    strings.TrimSpace(s.complete.String()),
		ParticipantTranscription: perParticipant,
		Datetime:                 s.endEpoch,
		StartTime:                s.startEpoch,
		EndTime:                  s.endEpoch,
		CallDuration:             s.endEpoch - s.startEpoch,
		Metadata:                 s.meta,
	}

	metrics.Default.RecordCallEnd(float64(record.CallDuration))
	s.logger.Info().
		Int("results", len(s.results)).
		Int64("duration", record.CallDuration).
		Msg("call finalized")

	s.sink(record)
	close(s.done)
}

func nonNilJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
