// Package store persists call records and merged transcripts as JSON files.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/merge"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability/metrics"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

const (
	recordPrefix   = "transcription-"
	mergedFileName = "combined-transcription.json"
)

// FileStore writes one JSON file per call record under a fixed directory.
// Persistence is best effort: a failed write loses that record.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

func NewFileStore(dir string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// RecordFileName returns the file name a call's record is persisted under.
func RecordFileName(callID string) string {
	return recordPrefix + callID + ".json"
}

// SaveCallRecord writes the record as transcription-<callID>.json.
func (s *FileStore) SaveCallRecord(callID string, record *transcript.CallRecord) error {
	path := filepath.Join(s.dir, RecordFileName(callID))
	err := s.writeJSON(path, record)
	metrics.Default.RecordPersist(err)
	if err != nil {
		s.logger.Error().Err(err).Str("call_id", callID).Msg("failed to persist call record")
		return fmt.Errorf("save call record %s: %w", callID, err)
	}
	s.logger.Info().
		Str("call_id", callID).
		Str("file", path).
		Int("results", len(record.Transcription)).
		Msg("call record persisted")
	return nil
}

// LoadCallRecords reads every persisted call record from the directory in
// sorted file name order. Records without transcription data and the merged
// output file are skipped.
func (s *FileStore) LoadCallRecords() ([]merge.Input, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read record directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == mergedFileName {
			continue
		}
		if !strings.HasPrefix(name, recordPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	inputs := make([]merge.Input, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var rec transcript.CallRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if len(rec.Transcription) == 0 {
			s.logger.Warn().Str("file", name).Msg("skipping record without transcription data")
			continue
		}
		inputs = append(inputs, merge.Input{File: name, Record: &rec})
	}
	return inputs, nil
}

// SaveMerged writes the merged transcript as combined-transcription.json.
// Source record files are left in place.
func (s *FileStore) SaveMerged(merged *transcript.MergedTranscript) error {
	path := filepath.Join(s.dir, mergedFileName)
	err := s.writeJSON(path, merged)
	metrics.Default.RecordPersist(err)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist merged transcript")
		return fmt.Errorf("save merged transcript: %w", err)
	}
	s.logger.Info().
		Str("file", path).
		Int("entries", merged.TotalEntries).
		Msg("merged transcript persisted")
	return nil
}

func (s *FileStore) writeJSON(path string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
