package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "LOG_LEVEL",
		"DEEPGRAM_URL", "ASR_LANGUAGE", "ASR_MODEL",
		"ASR_SMART_FORMAT", "ASR_INTERIM_RESULTS", "ASR_VAD_TURNOFF_MS",
		"SESSION_DRAIN_GRACE", "SESSION_MAX_BUFFERED_BYTES",
		"TRANSCRIPTIONS_DIR", "KAFKA_ENABLED", "KAFKA_BROKERS",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-call-transcription" {
		t.Errorf("expected default principal 'svc-call-transcription', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default port '8080', got %s", cfg.Service.HTTPPort)
	}

	// ASR defaults
	if cfg.ASR.URL != "wss://api.deepgram.com/v1/listen" {
		t.Errorf("expected default recognizer URL, got %s", cfg.ASR.URL)
	}
	if cfg.ASR.Language != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.ASR.Language)
	}
	if cfg.ASR.Model != "nova-2" {
		t.Errorf("expected default model 'nova-2', got %s", cfg.ASR.Model)
	}
	if cfg.ASR.SmartFormat != true {
		t.Errorf("expected default smart format true, got %v", cfg.ASR.SmartFormat)
	}
	if cfg.ASR.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.ASR.InterimResults)
	}
	if cfg.ASR.VADTurnoffMs != 60 {
		t.Errorf("expected default vad turnoff 60, got %d", cfg.ASR.VADTurnoffMs)
	}

	// Session defaults
	if cfg.Session.DrainGrace != 3*time.Second {
		t.Errorf("expected default drain grace 3s, got %v", cfg.Session.DrainGrace)
	}
	if cfg.Session.MaxBufferedBytes != 5*1024*1024 {
		t.Errorf("expected default buffered bytes 5MB, got %d", cfg.Session.MaxBufferedBytes)
	}

	// Store defaults
	if cfg.Store.Directory != "transcriptions" {
		t.Errorf("expected default transcriptions dir, got %s", cfg.Store.Directory)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("ASR_LANGUAGE", "es-ES")
	os.Setenv("ASR_MODEL", "nova-3")
	os.Setenv("ASR_SMART_FORMAT", "false")
	os.Setenv("ASR_VAD_TURNOFF_MS", "25")
	os.Setenv("SESSION_DRAIN_GRACE", "10s")
	os.Setenv("SESSION_MAX_BUFFERED_BYTES", "10485760")
	os.Setenv("TRANSCRIPTIONS_DIR", "/tmp/calls")
	os.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("ASR_LANGUAGE")
		os.Unsetenv("ASR_MODEL")
		os.Unsetenv("ASR_SMART_FORMAT")
		os.Unsetenv("ASR_VAD_TURNOFF_MS")
		os.Unsetenv("SESSION_DRAIN_GRACE")
		os.Unsetenv("SESSION_MAX_BUFFERED_BYTES")
		os.Unsetenv("TRANSCRIPTIONS_DIR")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.ASR.Language != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", cfg.ASR.Language)
	}
	if cfg.ASR.Model != "nova-3" {
		t.Errorf("expected model 'nova-3', got %s", cfg.ASR.Model)
	}
	if cfg.ASR.SmartFormat != false {
		t.Errorf("expected smart format false, got %v", cfg.ASR.SmartFormat)
	}
	if cfg.ASR.VADTurnoffMs != 25 {
		t.Errorf("expected vad turnoff 25, got %d", cfg.ASR.VADTurnoffMs)
	}
	if cfg.Session.DrainGrace != 10*time.Second {
		t.Errorf("expected drain grace 10s, got %v", cfg.Session.DrainGrace)
	}
	if cfg.Session.MaxBufferedBytes != 10485760 {
		t.Errorf("expected buffered bytes 10485760, got %d", cfg.Session.MaxBufferedBytes)
	}
	if cfg.Store.Directory != "/tmp/calls" {
		t.Errorf("expected transcriptions dir '/tmp/calls', got %s", cfg.Store.Directory)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("expected trimmed broker list, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("ASR_VAD_TURNOFF_MS", "not-a-number")
	os.Setenv("ASR_SMART_FORMAT", "invalid")
	os.Setenv("SESSION_DRAIN_GRACE", "invalid")
	os.Setenv("SESSION_MAX_BUFFERED_BYTES", "invalid")

	defer func() {
		os.Unsetenv("ASR_VAD_TURNOFF_MS")
		os.Unsetenv("ASR_SMART_FORMAT")
		os.Unsetenv("SESSION_DRAIN_GRACE")
		os.Unsetenv("SESSION_MAX_BUFFERED_BYTES")
	}()

	cfg := Load()

	// Should fall back to defaults on parse errors
	if cfg.ASR.VADTurnoffMs != 60 {
		t.Errorf("expected default vad turnoff on invalid input, got %d", cfg.ASR.VADTurnoffMs)
	}
	if cfg.ASR.SmartFormat != true {
		t.Errorf("expected default smart format on invalid input, got %v", cfg.ASR.SmartFormat)
	}
	if cfg.Session.DrainGrace != 3*time.Second {
		t.Errorf("expected default drain grace on invalid input, got %v", cfg.Session.DrainGrace)
	}
	if cfg.Session.MaxBufferedBytes != 5*1024*1024 {
		t.Errorf("expected default buffered bytes on invalid input, got %d", cfg.Session.MaxBufferedBytes)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
