package bootstrap

import (
	"context"
	"fmt"

	"jobtrack_worker/adapter/out/cache"
	"jobtrack_worker/adapter/out/filestore"
	"jobtrack_worker/adapter/out/mailstore"
	"jobtrack_worker/adapter/out/mongodb"
	"jobtrack_worker/adapter/out/persistence"
	"jobtrack_worker/adapter/out/remote"
	"jobtrack_worker/config"
	"jobtrack_worker/core/agent/llm"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/classification"
	"jobtrack_worker/core/service/correction"
	"jobtrack_worker/core/service/extraction"
	"jobtrack_worker/core/service/parser"
	"jobtrack_worker/core/service/pipeline"
	"jobtrack_worker/core/service/staging"
	"jobtrack_worker/infra/database"
	rediscache "jobtrack_worker/pkg/cache"
	"jobtrack_worker/pkg/httputil"
	"jobtrack_worker/pkg/logger"
	"jobtrack_worker/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// Options selects which parts of the graph a command needs.
type Options struct {
	// Remote delivers to REMOTE_SYNC_URL instead of the local staging table.
	Remote bool
	// MailStore is false for the API-only server.
	MailStore bool
}

type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	// Storage
	PG    *pgxpool.Pool
	DB    *sqlx.DB
	Redis *redis.Client
	Mongo *mongo.Client

	// Adapters
	MailStore   out.MailStore
	Reports     out.ReportRepository
	Corrections out.CorrectionRepository
	Seen        out.SeenFilter
	Remote      *remote.Client
	LLMClient   *llm.Client
	LLMLatency  *metrics.LatencyTracker

	// Services
	Staging    *staging.Service
	Sink       out.StagingSink
	Parser     *parser.Parser
	Rules      *classification.RuleEngine
	Classifier *classification.Pipeline
	Extractor  *extraction.Engine
	Model      *llm.Classifier
	Correction *correction.Service
	Settings   pipeline.Settings
	gmailStore *mailstore.Gmail
}

func NewDependencies(ctx context.Context, cfg *config.Config, opts Options) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Config:     cfg,
		Log:        logger.Default().Zerolog(),
		LLMLatency: metrics.NewLatencyTracker(500),
	}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps.Settings = pipeline.Settings{
		Threshold:    cfg.ConfidenceThreshold,
		Concurrency:  cfg.WorkerConcurrency,
		FewShotLimit: cfg.FewShotLimit,
		BatchLimit:   cfg.BatchLimit,
		BodyChars:    cfg.PromptBodyChars,
	}

	// =========================================================================
	// Storage
	// =========================================================================

	switch {
	case opts.Remote:
		// staging lives on the server
	case cfg.UsesPostgres():
		pg, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		deps.PG = pg
		deps.DB = database.SQLXFromPool(pg)
		cleanups = append(cleanups, func() { deps.DB.Close(); pg.Close() })
		logger.Info("Staging store: postgres")
	case cfg.SQLitePath != "":
		db, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		cleanups = append(cleanups, func() { db.Close() })
		logger.Info("Staging store: sqlite at %s", cfg.SQLitePath)
	}

	if deps.DB != nil {
		if err := persistence.Migrate(ctx, deps.DB); err != nil {
			return fail(fmt.Errorf("migrate: %w", err))
		}
	}

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			// Redis only backs caches; run without it rather than refuse to start.
			logger.WithError(err).Warn("Redis unavailable, using in-memory dedup and file corrections")
		} else {
			deps.Redis = rdb
			cleanups = append(cleanups, func() { rdb.Close() })
		}
	}

	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			logger.WithError(err).Warn("MongoDB unavailable, run reports disabled")
		} else {
			deps.Mongo = client
			cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })

			reports := mongodb.NewReportAdapter(client.Database(cfg.MongoDBName))
			if err := reports.EnsureIndexes(ctx); err != nil {
				logger.WithError(err).Warn("Failed to ensure run report indexes")
			}
			deps.Reports = reports
		}
	}

	// =========================================================================
	// Caches and correction store
	// =========================================================================

	if deps.Redis != nil {
		rc := rediscache.NewRedisCache(deps.Redis, "jobtrack")
		deps.Seen = cache.NewSeenFilter(rc, cfg.DedupTTL)
		deps.Corrections = cache.NewCorrectionPool(rc)
	} else {
		deps.Seen = cache.NewMemorySeenFilter(cache.DefaultL1Config())
		deps.Corrections = filestore.NewCorrectionFile(cfg.CorrectionsFile)
	}

	// =========================================================================
	// Classification and extraction
	// =========================================================================

	ruleOverlay, err := classification.LoadOverlay(cfg.RulesFile)
	if err != nil {
		return fail(err)
	}
	deps.Rules, err = classification.NewRuleEngine(ruleOverlay.Apply(classification.DefaultRuleSet()))
	if err != nil {
		return fail(fmt.Errorf("compile rules: %w", err))
	}

	extractOverlay, err := extraction.LoadOverlay(cfg.RulesFile)
	if err != nil {
		return fail(err)
	}
	deps.Extractor, err = extraction.NewEngine(extractOverlay.Apply(extraction.DefaultConfig()))
	if err != nil {
		return fail(fmt.Errorf("compile extraction tables: %w", err))
	}

	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		HTTPClient: httputil.NewClient(httputil.LLMClientConfig(cfg.LLM.Timeout)),
		Latency:    deps.LLMLatency,
	}, deps.Log)
	deps.Model = llm.NewClassifier(deps.LLMClient, llm.ClassifierConfig{
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Prompt: llm.PromptBuilder{
			BodyChars:   cfg.PromptBodyChars,
			MaxExamples: cfg.FewShotLimit,
		},
	})
	deps.Classifier = classification.NewPipeline(deps.Rules, deps.Model)
	deps.Parser = parser.New(cfg.MonitoredAddresses)
	deps.Correction = correction.NewService(deps.Corrections, deps.Rules, correction.Config{
		PoolCap: cfg.CorrectionPoolCap,
	}, deps.Log)

	// =========================================================================
	// Staging sink
	// =========================================================================

	if deps.DB != nil {
		deps.Staging = staging.NewService(persistence.NewStagingAdapter(deps.DB), deps.Seen, staging.Config{
			Threshold: cfg.ConfidenceThreshold,
		}, deps.Log)
	}
	if opts.Remote {
		deps.Remote = remote.NewClient(remote.ClientConfig{
			BaseURL:    cfg.RemoteSyncURL,
			Secret:     cfg.SyncSecret,
			HTTPClient: httputil.NewClient(httputil.SyncClientConfig()),
		}, deps.Log)
		deps.Sink = deps.Remote
	} else if deps.Staging != nil {
		deps.Sink = deps.Staging
	}

	// =========================================================================
	// Mail store
	// =========================================================================

	if opts.MailStore {
		store, err := deps.newMailStore(ctx)
		if err != nil {
			return fail(err)
		}
		deps.MailStore = store
	}

	return deps, cleanup, nil
}

func (d *Dependencies) newMailStore(ctx context.Context) (out.MailStore, error) {
	cfg := d.Config
	switch cfg.MailStore {
	case config.MailStoreNotmuch:
		return mailstore.NewNotmuch(cfg.NotmuchBin, nil, d.Log), nil
	case config.MailStoreMaildir:
		return mailstore.NewMaildir(cfg.MaildirPath), nil
	case config.MailStoreGmail:
		g, err := mailstore.NewGmail(ctx, mailstore.GmailConfig{
			ClientID:     cfg.Gmail.ClientID,
			ClientSecret: cfg.Gmail.ClientSecret,
			RefreshToken: cfg.Gmail.RefreshToken,
			User:         cfg.Gmail.User,
			Transport:    httputil.NewClient(httputil.GmailClientConfig()),
		}, d.Log)
		if err != nil {
			return nil, err
		}
		d.gmailStore = g
		return g, nil
	}
	return nil, fmt.Errorf("unknown mail store %q", cfg.MailStore)
}

// =============================================================================
// Pipeline builders
// =============================================================================

func (d *Dependencies) NewRunner() *pipeline.Runner {
	processor := pipeline.NewProcessor(d.MailStore, d.Parser, d.Classifier, d.Extractor, d.Model, d.Sink, d.Settings, d.Log)
	return pipeline.NewRunner(d.MailStore, processor, d.Correction, d.Reports, d.Settings, d.Log)
}

func (d *Dependencies) NewScanner() *correction.Scanner {
	return correction.NewScanner(d.MailStore, d.Parser, d.Correction, d.Sink, d.Extractor, correction.ScannerConfig{
		BodyChars: d.Config.PromptBodyChars,
		Limit:     d.Config.BatchLimit,
	}, d.Log)
}

// NewBackfiller needs the local staging table; it returns nil in remote mode.
func (d *Dependencies) NewBackfiller() *pipeline.Backfiller {
	if d.Staging == nil {
		return nil
	}
	return pipeline.NewBackfiller(d.Staging, d.Extractor, d.Model, d.Config.BatchLimit, d.Log)
}
