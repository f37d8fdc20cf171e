// Package transcript defines the canonical transcript model shared by the
// live relay and the offline merger: words with normalized
// {seconds, nanos} timestamps, recognizer results, persisted call records
// and merged transcripts.
package transcript

import (
	"strconv"
	"time"
)

// Track identifies one leg of a call's media stream.
type Track string

const (
	TrackInbound  Track = "inbound"
	TrackOutbound Track = "outbound"
)

// Valid reports whether the track is one of the two known media tracks.
func (t Track) Valid() bool {
	return t == TrackInbound || t == TrackOutbound
}

// Index returns the persisted track index. The inbound leg carries the
// agent (index 1), the outbound leg the customer (index 0).
func (t Track) Index() int {
	if t == TrackInbound {
		return 1
	}
	return 0
}

// Word is a single recognized word with recording-relative timing.
type Word struct {
	Word      string    `json:"word"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`

	// OffsetInRecording is the word start relative to the call's recording
	// start epoch, rounded to millisecond precision.
	OffsetInRecording float64 `json:"offsetInRecording"`
}

// Result is one finalized or interim recognizer result for a single track.
type Result struct {
	Words            []Word    `json:"words"`
	Transcript       string    `json:"transcript"`
	Confidence       float64   `json:"confidence"`
	IsFinal          bool      `json:"isFinal"`
	SpeechFinal      bool      `json:"speechFinal"`
	ResultEndTime    Timestamp `json:"resultEndTime"`
	Track            int       `json:"track"`
	ParticipantLabel string    `json:"participantLabel"`
	SequenceNumber   uint64    `json:"sequenceNumber"`
	RequestID        string    `json:"requestId"`
}

// CustomParameters carries the opaque per-call parameters supplied by the
// media source at stream start. Values arrive as strings; typed accessors
// parse on demand.
type CustomParameters map[string]string

// Keys recognized in custom parameters.
const (
	ParamCallFlowType        = "call_flow_type"
	ParamRecordingStartEpoch = "recording_start_time_in_epoch_seconds"
	ParamStreamStartEpoch    = "stream_start_time_in_epoch_seconds"
	ParamTrack0Label         = "track0_label"
	ParamTrack1Label         = "track1_label"
)

// Call flow types.
const (
	FlowNormal     = "normal"
	FlowConference = "conference"
	FlowMerged     = "merged"
)

// CallFlowType returns the call flow marker, empty when absent.
func (p CustomParameters) CallFlowType() string {
	return p[ParamCallFlowType]
}

// RecordingStartEpoch returns the externally supplied recording-start epoch
// in seconds, or 0 when absent or unparsable.
func (p CustomParameters) RecordingStartEpoch() float64 {
	return p.epochSeconds(ParamRecordingStartEpoch)
}

// StreamStartEpoch returns this record's stream-start epoch in seconds, or 0.
func (p CustomParameters) StreamStartEpoch() float64 {
	return p.epochSeconds(ParamStreamStartEpoch)
}

// TrackLabel returns the participant label for a persisted track index,
// with the original's fallbacks for unlabeled tracks.
func (p CustomParameters) TrackLabel(index int) string {
	if index == 1 {
		if l := p[ParamTrack1Label]; l != "" {
			return l
		}
		return "unknown1"
	}
	if l := p[ParamTrack0Label]; l != "" {
		return l
	}
	return "unknown"
}

func (p CustomParameters) epochSeconds(key string) float64 {
	v, err := strconv.ParseFloat(p[key], 64)
	if err != nil {
		return 0
	}
	return v
}

// Metadata is the session-initialization payload of a call, persisted
// verbatim into the CallRecord.
type Metadata struct {
	CallSid          string           `json:"callSid,omitempty"`
	StreamSid        string           `json:"streamSid,omitempty"`
	AccountSid       string           `json:"accountSid,omitempty"`
	CustomParameters CustomParameters `json:"customParameters"`
}

// CallRecord is the persisted outcome of one call leg: all finalized
// results in arrival order plus call-level bookkeeping.
type CallRecord struct {
	Transcription            []Result          `json:"transcription"`
	CompleteTranscription    string            `json:"completetranscription"`
	ParticipantTranscription map[string]string `json:"participantTranscriptions,omitempty"`
	Datetime                 int64             `json:"datetime"`
	StartTime                int64             `json:"startTime"`
	EndTime                  int64             `json:"endTime"`
	CallDuration             int64             `json:"callduration"`
	Metadata                 Metadata          `json:"metadata"`
}

// MergedTranscript is the chronologically merged view over several
// CallRecords belonging to one logical call.
type MergedTranscript struct {
	Transcription         []Result  `json:"transcription"`
	CompleteTranscription string    `json:"completetranscription"`
	Datetime              int64     `json:"datetime"`
	StartTime             int64     `json:"startTime"`
	EndTime               int64     `json:"endTime"`
	TotalDuration         int64     `json:"totalDuration"`
	TotalEntries          int       `json:"totalEntries"`
	Participants          []string  `json:"participants"`
	SourceFiles           []string  `json:"sourceFiles"`
	MergedAt              time.Time `json:"mergedAt"`
}
