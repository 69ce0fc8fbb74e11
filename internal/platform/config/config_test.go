package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnviron_Defaults(t *testing.T) {
	cfg, err := FromEnviron(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "por", cfg.OCRLanguage)
	assert.Equal(t, 2, cfg.OCRMaxSessions)
	assert.Equal(t, 30*time.Second, cfg.OCRBreakerCooldown)
	assert.InDelta(t, 0.3, cfg.DocConfidenceThreshold, 1e-9)
	assert.Equal(t, 20, cfg.DocMinTextLength)
	assert.Equal(t, 60*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, "submission.pending_review", cfg.Kafka().ModerationTopic)
	assert.Empty(t, cfg.Kafka().Brokers)
}

func TestFromEnviron_Overrides(t *testing.T) {
	cfg, err := FromEnviron([]string{
		"STORAGE_BACKEND=postgres",
		"POSTGRES_DSN=postgres://u:p@localhost/docverify?sslmode=disable",
		"KAFKA_BROKERS=broker-1:9092, broker-2:9092,,broker-1:9092",
		"PIPELINE_TIMEOUT=15s",
		"REDIS_URL=redis://localhost:6379/0",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka().Brokers)
	assert.Equal(t, 15*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis().URL)
	assert.Equal(t, 10, cfg.Redis().PoolSize)
}

func TestFromEnviron_TypedFields(t *testing.T) {
	cfg, err := FromEnviron([]string{
		"OCR_BREAKER_COOLDOWN=45s",
		"PIPELINE_TIMEOUT=1m",
		"DOC_CONFIDENCE_THRESHOLD=0.3",
		"ASSET_MAX_BYTES=123",
	})
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.OCRBreakerCooldown)
	assert.Equal(t, time.Minute, cfg.PipelineTimeout)
	assert.InDelta(t, 0.3, cfg.DocConfidenceThreshold, 1e-9)
	assert.Equal(t, int64(123), cfg.AssetMaxBytes)
}

func TestFromEnviron_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		wantMsg string
	}{
		{"postgres without DSN", []string{"STORAGE_BACKEND=postgres"}, "POSTGRES_DSN"},
		{"unknown backend", []string{"STORAGE_BACKEND=mongo"}, "unknown STORAGE_BACKEND"},
		{"threshold above one", []string{"DOC_CONFIDENCE_THRESHOLD=1.5"}, "DOC_CONFIDENCE_THRESHOLD"},
		{"zero sessions", []string{"OCR_MAX_SESSIONS=0"}, "OCR_MAX_SESSIONS"},
		{"malformed duration", []string{"PIPELINE_TIMEOUT=soon"}, "config error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnviron(tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Empty(t, SplitList(""))
	assert.Equal(t, []string{"rg", "identidade"}, SplitList(" rg ,identidade,, rg"))
}
