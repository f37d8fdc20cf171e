package merge

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

func word(text string, start, end transcript.Timestamp) transcript.Word {
	return transcript.Word{Word: text, StartTime: start, EndTime: end}
}

func ts(sec int64, nanos int32) transcript.Timestamp {
	return transcript.Timestamp{Seconds: sec, Nanos: nanos}
}

func primaryRecord(words ...transcript.Word) *transcript.CallRecord {
	return &transcript.CallRecord{
		Transcription: []transcript.Result{{
			Words:            words,
			IsFinal:          true,
			ParticipantLabel: "agent",
			Track:            1,
		}},
		StartTime:    1700000000,
		EndTime:      1700000060,
		CallDuration: 60,
		Metadata: transcript.Metadata{
			CustomParameters: transcript.CustomParameters{
				transcript.ParamCallFlowType:        transcript.FlowNormal,
				transcript.ParamRecordingStartEpoch: "1700000000",
			},
		},
	}
}

func TestMerge_NoRecords(t *testing.T) {
	_, err := NewMerger(zerolog.Nop()).Merge(nil)
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("err = %v, want ErrNoRecords", err)
	}
}

func TestMerge_NoPrimary(t *testing.T) {
	rec := primaryRecord(word("hi", ts(0, 0), ts(1, 0)))
	rec.Metadata.CustomParameters[transcript.ParamCallFlowType] = transcript.FlowConference
	other := primaryRecord(word("yo", ts(0, 0), ts(1, 0)))
	other.Metadata.CustomParameters[transcript.ParamCallFlowType] = transcript.FlowConference

	_, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "a.json", Record: rec},
		{File: "b.json", Record: other},
	})
	if !errors.Is(err, ErrNoPrimary) {
		t.Errorf("err = %v, want ErrNoPrimary", err)
	}
}

func TestMerge_SingleRecordRoundTrip(t *testing.T) {
	rec := primaryRecord(
		word("hello", ts(1, 500000000), ts(2, 0)),
		word("world", ts(2, 100000000), ts(2, 600000000)),
	)
	merged, err := NewMerger(zerolog.Nop()).Merge([]Input{{File: "a.json", Record: rec}})
	if err != nil {
		t.Fatal(err)
	}

	if len(merged.Transcription) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(merged.Transcription))
	}
	seg := merged.Transcription[0]
	if len(seg.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(seg.Words))
	}
	// No secondary records: timestamps are unchanged.
	if seg.Words[0].StartTime != ts(1, 500000000) || seg.Words[1].EndTime != ts(2, 600000000) {
		t.Errorf("timestamps shifted on single record merge: %+v", seg.Words)
	}
	if seg.Transcript != "hello world" {
		t.Errorf("segment transcript = %q", seg.Transcript)
	}
	if merged.CompleteTranscription != "hello world" {
		t.Errorf("complete transcription = %q", merged.CompleteTranscription)
	}
	if merged.TotalDuration != 60 {
		t.Errorf("total duration = %d, want primary duration 60", merged.TotalDuration)
	}
	if merged.TotalEntries != 1 {
		t.Errorf("total entries = %d", merged.TotalEntries)
	}
}

func TestMerge_SecondaryOffsetApplied(t *testing.T) {
	// Secondary stream starts 5.25s after the primary's recording start:
	// every word in it shifts by exactly {5, 250000000}.
	primary := primaryRecord(word("base", ts(0, 0), ts(1, 0)))
	secondary := &transcript.CallRecord{
		Transcription: []transcript.Result{{
			Words:            []transcript.Word{word("later", ts(0, 0), ts(0, 400000000))},
			IsFinal:          true,
			ParticipantLabel: "customer",
			Track:            0,
		}},
		StartTime:    1700000005,
		EndTime:      1700000045,
		CallDuration: 40,
		Metadata: transcript.Metadata{
			CustomParameters: transcript.CustomParameters{
				transcript.ParamCallFlowType:     transcript.FlowConference,
				transcript.ParamStreamStartEpoch: "1700000005.25",
			},
		},
	}

	merged, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "primary.json", Record: primary},
		{File: "secondary.json", Record: secondary},
	})
	if err != nil {
		t.Fatal(err)
	}

	var shifted *transcript.Word
	for i := range merged.Transcription {
		for j := range merged.Transcription[i].Words {
			if merged.Transcription[i].Words[j].Word == "later" {
				shifted = &merged.Transcription[i].Words[j]
			}
		}
	}
	if shifted == nil {
		t.Fatal("secondary word missing from merge")
	}
	if shifted.StartTime != ts(5, 250000000) {
		t.Errorf("shifted start = %+v, want {5, 250000000}", shifted.StartTime)
	}
	if shifted.EndTime != ts(5, 650000000) {
		t.Errorf("shifted end = %+v, want {5, 650000000}", shifted.EndTime)
	}
	if merged.TotalDuration != 100 {
		t.Errorf("total duration = %d, want 60 + 40", merged.TotalDuration)
	}
	if merged.StartTime != 1700000000 || merged.EndTime != 1700000060 {
		t.Errorf("merged window = [%d, %d]", merged.StartTime, merged.EndTime)
	}
	if len(merged.SourceFiles) != 2 || merged.SourceFiles[0] != "primary.json" {
		t.Errorf("source files = %v", merged.SourceFiles)
	}
	wantParticipants := []string{"agent", "customer"}
	if len(merged.Participants) != 2 || merged.Participants[0] != wantParticipants[0] || merged.Participants[1] != wantParticipants[1] {
		t.Errorf("participants = %v, want %v", merged.Participants, wantParticipants)
	}
}

func TestMerge_SimultaneousSpeechTiebreak(t *testing.T) {
	// Two tracks produce words with identical start times. The earlier end
	// time wins; with equal ends the lexicographically smaller text wins.
	// Both words are always retained.
	primary := primaryRecord(word("alpha", ts(10, 0), ts(10, 800000000)))
	secondary := &transcript.CallRecord{
		Transcription: []transcript.Result{{
			Words:            []transcript.Word{word("zulu", ts(10, 0), ts(10, 500000000))},
			IsFinal:          true,
			ParticipantLabel: "customer",
			Track:            0,
		}},
		Metadata: transcript.Metadata{
			CustomParameters: transcript.CustomParameters{
				transcript.ParamStreamStartEpoch: "1700000000",
			},
		},
	}

	merged, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "a.json", Record: primary},
		{File: "b.json", Record: secondary},
	})
	if err != nil {
		t.Fatal(err)
	}

	// zulu ends earlier so it sorts first despite the later text.
	if merged.CompleteTranscription != "zulu alpha" {
		t.Errorf("complete transcription = %q, want %q", merged.CompleteTranscription, "zulu alpha")
	}
	total := 0
	for _, seg := range merged.Transcription {
		total += len(seg.Words)
	}
	if total != 2 {
		t.Errorf("retained %d words, want 2", total)
	}
}

func TestMerge_TextTiebreakOnIdenticalTimes(t *testing.T) {
	primary := primaryRecord(
		word("bravo", ts(3, 0), ts(4, 0)),
		word("alpha", ts(3, 0), ts(4, 0)),
	)
	merged, err := NewMerger(zerolog.Nop()).Merge([]Input{{File: "a.json", Record: primary}})
	if err != nil {
		t.Fatal(err)
	}
	if merged.CompleteTranscription != "alpha bravo" {
		t.Errorf("complete transcription = %q, want %q", merged.CompleteTranscription, "alpha bravo")
	}
}

func TestMerge_SegmentsOnParticipantChange(t *testing.T) {
	primary := primaryRecord(
		word("one", ts(0, 0), ts(1, 0)),
		word("two", ts(4, 0), ts(5, 0)),
	)
	secondary := &transcript.CallRecord{
		Transcription: []transcript.Result{{
			Words:            []transcript.Word{word("mid", ts(2, 0), ts(3, 0))},
			IsFinal:          true,
			ParticipantLabel: "customer",
			Track:            0,
		}},
		Metadata: transcript.Metadata{
			CustomParameters: transcript.CustomParameters{
				transcript.ParamStreamStartEpoch: "1700000000",
			},
		},
	}

	merged, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "a.json", Record: primary},
		{File: "b.json", Record: secondary},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(merged.Transcription) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(merged.Transcription))
	}
	wantLabels := []string{"agent", "customer", "agent"}
	wantTexts := []string{"one", "mid", "two"}
	for i, seg := range merged.Transcription {
		if seg.ParticipantLabel != wantLabels[i] || seg.Transcript != wantTexts[i] {
			t.Errorf("segment %d = %q/%q, want %q/%q",
				i, seg.ParticipantLabel, seg.Transcript, wantLabels[i], wantTexts[i])
		}
	}
	if merged.Transcription[1].ResultEndTime != ts(3, 0) {
		t.Errorf("segment resultEndTime = %+v", merged.Transcription[1].ResultEndTime)
	}
}

func TestMerge_SkipsAlreadyMergedRecords(t *testing.T) {
	primary := primaryRecord(word("fresh", ts(0, 0), ts(1, 0)))
	stale := primaryRecord(word("stale", ts(0, 0), ts(1, 0)))
	stale.Metadata.CustomParameters[transcript.ParamCallFlowType] = transcript.FlowMerged

	merged, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "a.json", Record: primary},
		{File: "b.json", Record: stale},
	})
	if err != nil {
		t.Fatal(err)
	}
	if merged.CompleteTranscription != "fresh" {
		t.Errorf("complete transcription = %q, want %q", merged.CompleteTranscription, "fresh")
	}
	if len(merged.SourceFiles) != 1 || merged.SourceFiles[0] != "a.json" {
		t.Errorf("source files = %v, want only a.json", merged.SourceFiles)
	}

	onlyMerged := primaryRecord(word("stale", ts(0, 0), ts(1, 0)))
	onlyMerged.Metadata.CustomParameters[transcript.ParamCallFlowType] = transcript.FlowMerged
	_, err = NewMerger(zerolog.Nop()).Merge([]Input{{File: "b.json", Record: onlyMerged}})
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("err = %v, want ErrNoRecords when every input is already merged", err)
	}
}

func TestMerge_DeterministicInputOrdering(t *testing.T) {
	primary := primaryRecord(word("p", ts(0, 0), ts(1, 0)))
	secondary := &transcript.CallRecord{
		Transcription: []transcript.Result{{
			Words:            []transcript.Word{word("s", ts(0, 0), ts(1, 0))},
			IsFinal:          true,
			ParticipantLabel: "customer",
		}},
		Metadata: transcript.Metadata{
			CustomParameters: transcript.CustomParameters{
				transcript.ParamStreamStartEpoch: "1700000000",
			},
		},
	}

	a, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "1-primary.json", Record: primary},
		{File: "2-secondary.json", Record: secondary},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMerger(zerolog.Nop()).Merge([]Input{
		{File: "2-secondary.json", Record: secondary},
		{File: "1-primary.json", Record: primary},
	})
	if err != nil {
		t.Fatal(err)
	}

	if a.CompleteTranscription != b.CompleteTranscription {
		t.Errorf("merge not order independent: %q vs %q", a.CompleteTranscription, b.CompleteTranscription)
	}
	if a.SourceFiles[0] != b.SourceFiles[0] {
		t.Errorf("source file ordering differs: %v vs %v", a.SourceFiles, b.SourceFiles)
	}
}
