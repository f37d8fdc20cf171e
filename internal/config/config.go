// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all runtime settings for both binaries.
type Configuration struct {
	Service       ServiceConfig
	ASR           ASRConfig
	Session       SessionConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the process and its listen address.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// ASRConfig holds the streaming recognizer connection parameters.
type ASRConfig struct {
	URL            string
	APIKey         string
	Language       string
	Model          string
	SmartFormat    bool
	FillerWords    bool
	NoDelay        bool
	InterimResults bool
	VADTurnoffMs   int
	Redact         string
}

// SessionConfig bounds per-call resources.
type SessionConfig struct {
	DrainGrace       time.Duration
	MaxBufferedBytes int
}

// StoreConfig locates the transcription output directory.
type StoreConfig struct {
	Directory string
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicRecord     string
	Principal       string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsPort string
}

// Load reads configuration from the environment, falling back to defaults
// on missing or unparsable values.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-call-transcription")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		ASR: ASRConfig{
			URL:            envOrDefault("DEEPGRAM_URL", "wss://api.deepgram.com/v1/listen"),
			APIKey:         os.Getenv("DEEPGRAM_API_KEY"),
			Language:       envOrDefault("ASR_LANGUAGE", "en-US"),
			Model:          envOrDefault("ASR_MODEL", "nova-2"),
			SmartFormat:    envOrDefaultBool("ASR_SMART_FORMAT", true),
			FillerWords:    envOrDefaultBool("ASR_FILLER_WORDS", true),
			NoDelay:        envOrDefaultBool("ASR_NO_DELAY", true),
			InterimResults: envOrDefaultBool("ASR_INTERIM_RESULTS", true),
			VADTurnoffMs:   envOrDefaultInt("ASR_VAD_TURNOFF_MS", 60),
			Redact:         os.Getenv("ASR_REDACT"),
		},
		Session: SessionConfig{
			DrainGrace:       envOrDefaultDuration("SESSION_DRAIN_GRACE", 3*time.Second),
			MaxBufferedBytes: envOrDefaultInt("SESSION_MAX_BUFFERED_BYTES", 5*1024*1024),
		},
		Store: StoreConfig{
			Directory: envOrDefault("TRANSCRIPTIONS_DIR", "transcriptions"),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         splitList(os.Getenv("KAFKA_BROKERS")),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "call.transcript.final"),
			TopicRecord:     envOrDefault("KAFKA_TOPIC_RECORD", "call.record.stored"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
