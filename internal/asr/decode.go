package asr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

// ErrNoTranscript marks a structurally valid recognizer message that carries
// no transcript text (metadata-only or empty interim). Such messages never
// become Results.
var ErrNoTranscript = errors.New("asr: message carries no transcript")

// listenMessage mirrors the recognizer's transcript event wire shape.
type listenMessage struct {
	Channel struct {
		Alternatives []struct {
			Transcript string       `json:"transcript"`
			Confidence float64      `json:"confidence"`
			Words      []listenWord `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Duration    float64 `json:"duration"`
	Start       float64 `json:"start"`
	Metadata    *struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
}

type listenWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
}

// decodeResult parses one recognizer message into a canonical Result with
// stream-relative word timestamps. It returns ErrNoTranscript for messages
// without transcript text, and a wrapped parse error for malformed payloads.
// The sequence number is the caller-assigned per-connector decode counter.
func decodeResult(raw []byte, seq uint64) (*transcript.Result, error) {
	var msg listenMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("asr: malformed recognizer message: %w", err)
	}
	if len(msg.Channel.Alternatives) == 0 {
		return nil, ErrNoTranscript
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil, ErrNoTranscript
	}

	words := make([]transcript.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		words = append(words, transcript.Word{
			Word:      text,
			StartTime: transcript.TimestampFromSeconds(w.Start),
			EndTime:   transcript.TimestampFromSeconds(w.End),
		})
	}

	res := &transcript.Result{
		Words:          words,
		Transcript:     alt.Transcript,
		Confidence:     alt.Confidence,
		IsFinal:        msg.IsFinal,
		SpeechFinal:    msg.SpeechFinal,
		ResultEndTime:  transcript.TimestampFromSeconds(msg.Start + msg.Duration),
		SequenceNumber: seq,
	}
	if msg.Metadata != nil {
		res.RequestID = msg.Metadata.RequestID
	}
	return res, nil
}

// isMetadataOnly reports whether a message is a metadata envelope without a
// channel payload, such as the connection's opening message.
func isMetadataOnly(raw []byte) bool {
	var envelope struct {
		Channel  *json.RawMessage `json:"channel"`
		Metadata *json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false
	}
	return envelope.Channel == nil && envelope.Metadata != nil
}
