package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/api/media"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/app"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/asr"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/config"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/events"
	apphttp "github.com/abhishek-singh31/deepgram-transcription-merger/internal/http"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/models"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability"
	appsession "github.com/abhishek-singh31/deepgram-transcription-merger/internal/session"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/store"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("application start failed")
	}
	logger := application.Logger

	// Kafka publisher with separate topics for transcripts and stored records
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicRecord:     cfg.Kafka.TopicRecord,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	fileStore := store.NewFileStore(cfg.Store.Directory, logger)

	obs := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obs.Start()

	asrCfg := asr.Config{
		URL:            cfg.ASR.URL,
		APIKey:         cfg.ASR.APIKey,
		Language:       cfg.ASR.Language,
		Model:          cfg.ASR.Model,
		SmartFormat:    cfg.ASR.SmartFormat,
		FillerWords:    cfg.ASR.FillerWords,
		NoDelay:        cfg.ASR.NoDelay,
		InterimResults: cfg.ASR.InterimResults,
		VADTurnoffMs:   cfg.ASR.VADTurnoffMs,
		Redact:         cfg.ASR.Redact,
	}

	newSession := func(id string, meta transcript.Metadata) media.Session {
		callLogger := logger.With().Str("call_id", id).Logger()
		connect := func(track transcript.Track) appsession.Connector {
			return asr.NewConnector(asrCfg, track, callLogger)
		}
		sink := func(record *transcript.CallRecord) {
			for _, res := range record.Transcription {
				event := models.TranscriptFinal{
					EventType:        "call.transcript.final",
					CallID:           id,
					CallSid:          record.Metadata.CallSid,
					StreamSid:        record.Metadata.StreamSid,
					Timestamp:        time.Now().Unix(),
					Track:            res.Track,
					ParticipantLabel: res.ParticipantLabel,
					Text:             res.Transcript,
					Confidence:       res.Confidence,
					SequenceNumber:   res.SequenceNumber,
				}
				_ = publisher.PublishTranscript(context.Background(), id, event)
			}

			if err := fileStore.SaveCallRecord(id, record); err != nil {
				return
			}
			stored := models.CallRecordStored{
				EventType:    "call.record.stored",
				CallID:       id,
				CallSid:      record.Metadata.CallSid,
				File:         store.RecordFileName(id),
				Timestamp:    time.Now().Unix(),
				ResultCount:  len(record.Transcription),
				CallDuration: record.CallDuration,
			}
			_ = publisher.PublishRecord(context.Background(), id, stored)
		}
		return appsession.NewCallSession(appsession.Config{
			ID:               id,
			Metadata:         meta,
			DrainGrace:       cfg.Session.DrainGrace,
			MaxBufferedBytes: cfg.Session.MaxBufferedBytes,
		}, connect, sink, callLogger)
	}

	mediaHandler := media.NewHandler(newSession, logger)
	router := apphttp.NewRouter(mediaHandler)

	// No read/write timeouts: media stream connections stay open for the
	// full call duration.
	srv := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     router,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("media stream server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := obs.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("observability shutdown failed")
	}
	application.Shutdown()
}
