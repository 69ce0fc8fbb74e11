// Package bootstrap assembles the verification pipeline and its infrastructure from
// Config. Both commands build through it so they run the same wiring.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/asset"
	"docverify/internal/document"
	"docverify/internal/face"
	"docverify/internal/moderation"
	"docverify/internal/moderation/store/badgerdb"
	"docverify/internal/moderation/store/memory"
	modpostgres "docverify/internal/moderation/store/postgres"
	"docverify/internal/ocr"
	"docverify/internal/ocr/tesseract"
	"docverify/internal/platform/config"
	"docverify/internal/platform/kafka"
	"docverify/internal/platform/postgres"
	"docverify/internal/platform/redis"
	"docverify/internal/platform/s3"
	httptransport "docverify/internal/transport/http"
	"docverify/internal/verification"
	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/publisher"
	auditmemory "docverify/pkg/platform/audit/store/memory"
	auditpostgres "docverify/pkg/platform/audit/store/postgres"
)

const auditBuffer = 256

// App is the assembled pipeline plus what the commands need around it.
type App struct {
	Service *verification.Service
	// Records reads the moderation queue.
	Records moderation.Store
	// Producer is nil when Kafka is not configured.
	Producer *kgo.Client
	Checks   map[string]httptransport.CheckFunc

	closers []func() error
}

// Options selects the optional infrastructure.
type Options struct {
	// RequireKafka fails the build when KAFKA_BROKERS is empty.
	RequireKafka bool
	// OCREngine replaces the Tesseract engine.
	OCREngine ocr.Engine
}

// Build wires every component. On error, whatever was already opened is closed.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer, opts Options) (_ *App, err error) {
	app := &App{Checks: make(map[string]httptransport.CheckFunc)}
	defer func() {
		if err != nil {
			if cerr := app.Close(); cerr != nil {
				logger.WarnContext(ctx, "cleanup after failed startup", "error", cerr)
			}
		}
	}()

	resolver := buildResolver(cfg)

	engine := opts.OCREngine
	if engine == nil {
		engine = tesseract.New(cfg.OCRLanguage, cfg.OCRTessdataPrefix)
		if !tesseract.Available {
			logger.WarnContext(ctx, "running without tesseract: every document will fail text extraction")
		}
	}
	extractor := ocr.NewExtractor(engine, OCRConfig(cfg),
		ocr.WithLogger(logger),
		ocr.WithMetrics(ocr.NewMetrics(reg)),
	)
	analyzer, err := document.NewAnalyzer(extractor, DocumentConfig(cfg), document.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("document analyzer: %w", err)
	}
	detector := face.NewRenderDetector(
		face.WithMinDimension(cfg.FaceMinDimension),
		face.WithDetectorLogger(logger),
	)
	comparator := face.NewComparator(detector, face.WithLogger(logger))

	var db *sql.DB
	if cfg.StorageBackend == config.BackendPostgres {
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.onClose(db.Close)
		app.Checks["postgres"] = db.PingContext
	}

	store, err := app.buildStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	app.Records = store

	auditor, err := app.buildAuditor(ctx, db, logger, reg)
	if err != nil {
		return nil, err
	}

	enqOpts := []moderation.Option{
		moderation.WithLogger(logger),
		moderation.WithMetrics(moderation.NewMetrics(reg)),
		moderation.WithAuditPublisher(auditor),
	}

	rdb, err := redis.New(ctx, cfg.Redis())
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		app.onClose(rdb.Close)
		app.Checks["redis"] = rdb.Health
		enqOpts = append(enqOpts, moderation.WithGuard(moderation.NewRedisGuard(rdb.Client, cfg.RedisDedupTTL)))
	}

	kcfg := cfg.Kafka()
	switch producer, perr := kafka.NewProducer(kcfg); {
	case errors.Is(perr, kafka.ErrNoBrokers):
		if opts.RequireKafka {
			return nil, perr
		}
	case perr != nil:
		return nil, perr
	default:
		app.Producer = producer
		app.onClose(func() error { producer.Close(); return nil })
		app.Checks["kafka"] = producer.Ping
		if err := kafka.EnsureTopics(ctx, producer, 1, kcfg.SubmissionsTopic, kcfg.OutcomesTopic, kcfg.ModerationTopic); err != nil {
			logger.WarnContext(ctx, "could not ensure kafka topics", "error", err)
		}
		enqOpts = append(enqOpts, moderation.WithNotifier(moderation.NewKafkaNotifier(producer, kcfg.ModerationTopic)))
	}

	enqueuer := moderation.NewEnqueuer(store, enqOpts...)
	app.Service = verification.NewService(resolver, analyzer, comparator, enqueuer,
		verification.WithLogger(logger),
		verification.WithMetrics(verification.NewMetrics(reg)),
		verification.WithAuditPublisher(auditor),
		verification.WithTimeout(cfg.PipelineTimeout),
	)
	return app, nil
}

func buildResolver(cfg config.Config) *asset.Resolver {
	opts := []asset.Option{asset.WithFileLoader(asset.FileLoader{MaxBytes: cfg.AssetMaxBytes})}
	if cfg.S3Endpoint != "" || cfg.S3AccessKey != "" {
		opts = append(opts, asset.WithS3(asset.NewS3Loader(s3.Connect(cfg.S3()), cfg.AssetMaxBytes)))
	}
	return asset.NewResolver(opts...)
}

func (a *App) buildStore(ctx context.Context, cfg config.Config, db *sql.DB) (moderation.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		store := modpostgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendBadger:
		bdb, err := badgerdb.Open(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		a.onClose(bdb.Close)
		a.Checks["badger"] = badgerHealth(bdb)
		return badgerdb.New(bdb), nil
	default:
		return memory.NewInMemoryStore(), nil
	}
}

func (a *App) buildAuditor(ctx context.Context, db *sql.DB, logger *slog.Logger, reg prometheus.Registerer) (*publisher.Publisher, error) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		pg := auditpostgres.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	}
	p := publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(logger),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	)
	a.onClose(func() error { p.Close(); return nil })
	return p, nil
}

func badgerHealth(db *badger.DB) httptransport.CheckFunc {
	return func(context.Context) error {
		if db.IsClosed() {
			return errors.New("badger database is closed")
		}
		return nil
	}
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OCRConfig derives the extractor settings.
func OCRConfig(cfg config.Config) ocr.Config {
	return ocr.Config{
		MaxSessions:      int64(cfg.OCRMaxSessions),
		BreakerThreshold: cfg.OCRBreakerThreshold,
		BreakerCooldown:  cfg.OCRBreakerCooldown,
	}
}

// DocumentConfig derives analyzer thresholds; keyword lists left empty keep the defaults.
func DocumentConfig(cfg config.Config) document.Config {
	dc := document.DefaultConfig().WithOverrides(
		config.SplitList(cfg.DocPrimaryKeywords),
		config.SplitList(cfg.DocSecondaryKeywords),
		config.SplitList(cfg.DocGenericKeywords),
	)
	dc.ConfidenceThreshold = cfg.DocConfidenceThreshold
	dc.MinTextLength = cfg.DocMinTextLength
	return dc
}
