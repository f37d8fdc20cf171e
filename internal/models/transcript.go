// Package models defines the data structures for published call events.
package models

// TranscriptFinal represents one finalized transcript result for a call leg.
type TranscriptFinal struct {
	EventType        string  `json:"eventType"`
	CallID           string  `json:"callId"`
	CallSid          string  `json:"callSid,omitempty"`
	StreamSid        string  `json:"streamSid,omitempty"`
	Timestamp        int64   `json:"timestamp"`
	Track            int     `json:"track"`
	ParticipantLabel string  `json:"participantLabel"`
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	SequenceNumber   uint64  `json:"sequenceNumber"`
}

// CallRecordStored announces that a call's transcription record has been
// persisted and is available for merging.
type CallRecordStored struct {
	EventType    string `json:"eventType"`
	CallID       string `json:"callId"`
	CallSid      string `json:"callSid,omitempty"`
	File         string `json:"file"`
	Timestamp    int64  `json:"timestamp"`
	ResultCount  int    `json:"resultCount"`
	CallDuration int64  `json:"callDuration"`
}
