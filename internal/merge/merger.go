// Package merge implements the offline chronological merge of several
// persisted call records belonging to one logical call.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability/metrics"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

var (
	// ErrNoRecords is returned when the merge input set is empty.
	ErrNoRecords = errors.New("merge: no call records")

	// ErrNoPrimary is returned when several records are present but none
	// carries the normal call flow marker identifying the chronological base.
	ErrNoPrimary = errors.New("merge: no primary call record")
)

// Input pairs a persisted call record with the file it was loaded from.
// The file name doubles as the deterministic ordering key.
type Input struct {
	File   string
	Record *transcript.CallRecord
}

// Merger combines a set of call records into one chronologically ordered
// merged transcript. It holds no state across runs.
type Merger struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewMerger(logger zerolog.Logger) *Merger {
	return &Merger{
		logger: logger.With().Str("component", "merger").Logger(),
		now:    time.Now,
	}
}

// taggedWord is one flattened word with its originating participant,
// offset already applied.
type taggedWord struct {
	word        transcript.Word
	participant string
	track       int
}

// Merge offsets every secondary record onto the primary's timeline,
// flattens all words, orders them deterministically and re-segments by
// participant.
func (m *Merger) Merge(inputs []Input) (*transcript.MergedTranscript, error) {
	if len(inputs) == 0 {
		return nil, ErrNoRecords
	}

	ordered := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		// A record flagged as merged is the output of an earlier run and
		// must not be folded into the timeline a second time.
		if in.Record.Metadata.CustomParameters.CallFlowType() == transcript.FlowMerged {
			m.logger.Warn().Str("file", in.File).Msg("skipping already merged record")
			continue
		}
		ordered = append(ordered, in)
	}
	if len(ordered) == 0 {
		return nil, ErrNoRecords
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].File < ordered[j].File })

	primary, err := findPrimary(ordered)
	if err != nil {
		return nil, err
	}
	anchor := primary.Record.Metadata.CustomParameters.RecordingStartEpoch()

	var words []taggedWord
	files := make([]string, 0, len(ordered))
	seen := make(map[string]struct{})
	var participants []string

	var maxSecondaryDuration int64
	startEpoch := primary.Record.StartTime
	endEpoch := primary.Record.EndTime

	for _, in := range ordered {
		rec := in.Record
		files = append(files, in.File)

		offset := transcript.Timestamp{}
		if in.File != primary.File {
			streamStart := rec.Metadata.CustomParameters.StreamStartEpoch()
			offset = transcript.OffsetBetween(streamStart, anchor)
			if rec.CallDuration > maxSecondaryDuration {
				maxSecondaryDuration = rec.CallDuration
			}
		}

		if rec.StartTime != 0 && rec.StartTime < startEpoch {
			startEpoch = rec.StartTime
		}
		if rec.EndTime > endEpoch {
			endEpoch = rec.EndTime
		}

		for _, res := range rec.Transcription {
			label := res.ParticipantLabel
			if label == "" {
				label = rec.Metadata.CustomParameters.TrackLabel(res.Track)
			}
			if _, ok := seen[label]; !ok {
				seen[label] = struct{}{}
				participants = append(participants, label)
			}
			for _, w := range res.Words {
				w.StartTime = w.StartTime.Add(offset)
				w.EndTime = w.EndTime.Add(offset)
				words = append(words, taggedWord{word: w, participant: label, track: res.Track})
			}
		}
	}

	sortWords(words)
	segments := segment(words)
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Words[0].StartTime.Before(segments[j].Words[0].StartTime)
	})

	texts := make([]string, len(words))
	for i, tw := range words {
		texts[i] = tw.word.Word
	}
	sort.Strings(participants)

	merged := &transcript.MergedTranscript{
		Transcription:         segments,
		CompleteTranscription: strings.Join(texts, " "),
		Datetime:              endEpoch,
		StartTime:             startEpoch,
		EndTime:               endEpoch,
		TotalDuration:         primary.Record.CallDuration + maxSecondaryDuration,
		TotalEntries:          len(segments),
		Participants:          participants,
		SourceFiles:           files,
		MergedAt:              m.now(),
	}

	metrics.Default.RecordMerge(len(segments))
	m.logger.Info().
		Int("source_files", len(files)).
		Int("words", len(words)).
		Int("entries", len(segments)).
		Msg("merged call records")
	return merged, nil
}

// findPrimary picks the record flagged with the normal call flow. A sole
// record is its own primary regardless of flags.
func findPrimary(ordered []Input) (Input, error) {
	if len(ordered) == 1 {
		return ordered[0], nil
	}
	for _, in := range ordered {
		if in.Record.Metadata.CustomParameters.CallFlowType() == transcript.FlowNormal {
			return in, nil
		}
	}
	return Input{}, fmt.Errorf("%w among %d records", ErrNoPrimary, len(ordered))
}

// sortWords applies the strict five key comparator: word start, word end,
// then word text. Ties survive only for literally identical tuples.
func sortWords(words []taggedWord) {
	sort.SliceStable(words, func(i, j int) bool {
		a, b := words[i].word, words[j].word
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c < 0
		}
		if c := a.EndTime.Compare(b.EndTime); c != 0 {
			return c < 0
		}
		return a.Word < b.Word
	})
}

// segment groups contiguous same-participant words into one entry each.
func segment(words []taggedWord) []transcript.Result {
	var segments []transcript.Result
	for _, tw := range words {
		n := len(segments)
		if n == 0 || segments[n-1].ParticipantLabel != tw.participant {
			segments = append(segments, transcript.Result{
				ParticipantLabel: tw.participant,
				Track:            tw.track,
				IsFinal:          true,
			})
			n++
		}
		seg := &segments[n-1]
		seg.Words = append(seg.Words, tw.word)
		seg.ResultEndTime = tw.word.EndTime
	}
	for i := range segments {
		texts := make([]string, len(segments[i].Words))
		for j, w := range segments[i].Words {
			texts[j] = w.Word
		}
		segments[i].Transcript = strings.Join(texts, " ")
	}
	return segments
}
