package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/merge"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability/logging"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/store"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "transcriptions", "directory holding transcription-*.json call records")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logCfg := logging.DefaultConfig()
	logCfg.Level = *level
	logging.Init(logCfg)
	logger := logging.WithComponent("merger-cli")

	fileStore := store.NewFileStore(*dir, log.Logger)

	inputs, err := fileStore.LoadCallRecords()
	if err != nil {
		logger.Error().Err(err).Str("dir", *dir).Msg("failed to load call records")
		os.Exit(1)
	}
	if len(inputs) == 0 {
		logger.Error().Str("dir", *dir).Msg("no call records to merge")
		os.Exit(1)
	}

	merger := merge.NewMerger(log.Logger)
	merged, err := merger.Merge(inputs)
	if err != nil {
		logger.Error().Err(err).Msg("merge failed")
		os.Exit(1)
	}

	if err := fileStore.SaveMerged(merged); err != nil {
		logger.Error().Err(err).Msg("failed to write merged transcript")
		os.Exit(1)
	}

	logger.Info().
		Int("records", len(inputs)).
		Int("entries", merged.TotalEntries).
		Strs("participants", merged.Participants).
		Msg("merge complete")
}
