// Package config loads process configuration from the environment (and an optional .env
// file) and derives the per-component configs passed to constructors.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Storage backends for moderation records.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config is the flat environment view. Component configs are derived from it.
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	// Ops endpoints (daemon only)
	OpsAddr string `env:"OPS_ADDR,default=:9090"`

	// OCR
	OCRLanguage         string        `env:"OCR_LANGUAGE,default=por"`
	OCRTessdataPrefix   string        `env:"OCR_TESSDATA_PREFIX"`
	OCRMaxSessions      int           `env:"OCR_MAX_SESSIONS,default=2"`
	OCRBreakerThreshold int           `env:"OCR_BREAKER_THRESHOLD,default=5"`
	OCRBreakerCooldown  time.Duration `env:"OCR_BREAKER_COOLDOWN,default=30s"`

	// Document analysis
	DocConfidenceThreshold float64 `env:"DOC_CONFIDENCE_THRESHOLD,default=0.3"`
	DocMinTextLength       int     `env:"DOC_MIN_TEXT_LENGTH,default=20"`
	DocPrimaryKeywords     string  `env:"DOC_PRIMARY_KEYWORDS"`
	DocSecondaryKeywords   string  `env:"DOC_SECONDARY_KEYWORDS"`
	DocGenericKeywords     string  `env:"DOC_GENERIC_KEYWORDS"`

	// Face presence
	FaceMinDimension int `env:"FACE_MIN_DIMENSION,default=64"`

	// Assets
	AssetMaxBytes int64 `env:"ASSET_MAX_BYTES,default=20971520"`

	// Pipeline
	PipelineTimeout time.Duration `env:"PIPELINE_TIMEOUT,default=60s"`

	// Moderation storage
	StorageBackend string `env:"STORAGE_BACKEND,default=memory"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	BadgerPath     string `env:"BADGER_PATH,default=./data/moderation"`

	// Redis dedup guard
	RedisURL          string        `env:"REDIS_URL"`
	RedisDedupTTL     time.Duration `env:"REDIS_DEDUP_TTL,default=10m"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE,default=10"`
	RedisMinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS,default=2"`
	RedisDialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
	RedisReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT,default=3s"`
	RedisWriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT,default=3s"`

	// Kafka
	KafkaBrokers          string `env:"KAFKA_BROKERS"`
	KafkaSubmissionsTopic string `env:"KAFKA_SUBMISSIONS_TOPIC,default=verification.submissions"`
	KafkaOutcomesTopic    string `env:"KAFKA_OUTCOMES_TOPIC,default=verification.outcomes"`
	KafkaModerationTopic  string `env:"KAFKA_MODERATION_TOPIC,default=submission.pending_review"`
	KafkaGroup            string `env:"KAFKA_GROUP,default=docverify"`
	KafkaConcurrency      int    `env:"KAFKA_CONCURRENCY,default=4"`

	// S3-compatible object storage for image references
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION,default=us-east-1"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures producers and the submission consumer.
type KafkaConfig struct {
	Brokers          []string
	SubmissionsTopic string
	OutcomesTopic    string
	ModerationTopic  string
	Group            string
	Concurrency      int
}

// S3Config configures the S3 asset resolver.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Load reads an optional .env file from the working directory (or the given paths),
// then the process environment.
func Load(dotenvPaths ...string) (Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load(dotenvPaths...)
	return FromEnviron(os.Environ())
}

// FromEnviron builds a Config from KEY=VALUE pairs.
func FromEnviron(environ []string) (Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendMemory, BackendBadger:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.DocConfidenceThreshold < 0 || c.DocConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("DOC_CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.DocConfidenceThreshold))
	}
	if c.OCRMaxSessions < 1 {
		errs = append(errs, errors.New("OCR_MAX_SESSIONS must be at least 1"))
	}
	if c.PipelineTimeout <= 0 {
		errs = append(errs, errors.New("PIPELINE_TIMEOUT must be positive"))
	}
	if c.KafkaConcurrency < 1 {
		errs = append(errs, errors.New("KAFKA_CONCURRENCY must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     c.RedisPoolSize,
		MinIdleConns: c.RedisMinIdleConns,
		DialTimeout:  c.RedisDialTimeout,
		ReadTimeout:  c.RedisReadTimeout,
		WriteTimeout: c.RedisWriteTimeout,
	}
}

func (c Config) Kafka() KafkaConfig {
	return KafkaConfig{
		Brokers:          SplitList(c.KafkaBrokers),
		SubmissionsTopic: c.KafkaSubmissionsTopic,
		OutcomesTopic:    c.KafkaOutcomesTopic,
		ModerationTopic:  c.KafkaModerationTopic,
		Group:            c.KafkaGroup,
		Concurrency:      c.KafkaConcurrency,
	}
}

func (c Config) S3() S3Config {
	return S3Config{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
	}
}

// SplitList splits a comma separated value, trimming blanks and duplicates.
func SplitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(parts))
}
