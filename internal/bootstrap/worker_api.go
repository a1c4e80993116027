package bootstrap

import (
	"context"
	"time"

	"jobtrack_worker/adapter/in/http"
	"jobtrack_worker/adapter/out/mongodb"
	"jobtrack_worker/infra/database"
	"jobtrack_worker/infra/middleware"
	"jobtrack_worker/internal/stream"
	"jobtrack_worker/pkg/apperr"
	"jobtrack_worker/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

const (
	maxRequestBody = 10 * 1024 * 1024
	// Producers send at most a few hundred records per minute.
	ingestRateLimit  = 120
	ingestRateWindow = time.Minute
)

// NewAPI builds the ingestion and review API. It needs the local staging table.
func NewAPI(deps *Dependencies) (*fiber.App, error) {
	if deps.Staging == nil {
		return nil, apperr.ConfigError("the API needs DATABASE_URL or SQLITE_PATH")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             maxRequestBody,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ServerHeader:          "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	health := http.NewHealthHandler()
	if deps.DB != nil {
		db := deps.DB
		health.AddCheck("database", http.CheckerFunc(func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}))
		health.AddStats("database_pool", func() map[string]any {
			return metrics.GetDBPoolStats(db.DB).ToMap()
		})
	}
	if deps.Redis != nil {
		rdb := deps.Redis
		health.AddCheck("redis", http.CheckerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}
	if deps.Mongo != nil {
		client := deps.Mongo
		health.AddCheck("mongodb", http.CheckerFunc(func(ctx context.Context) error {
			return mongodb.Ping(ctx, client)
		}))
	}
	health.AddBreaker("llm-runtime", deps.LLMClient)
	health.AddStats("llm_latency", func() map[string]any {
		return deps.LLMLatency.Stats().ToMap()
	})
	if deps.gmailStore != nil {
		health.AddBreaker("gmail-api", deps.gmailStore)
	}
	health.Register(app)

	limiter := middleware.NewRateLimiter(ingestRateLimit, ingestRateWindow)
	api := app.Group("/api/email-sync",
		middleware.SharedSecret(deps.Config.SyncSecret),
		limiter.Handler(),
		middleware.RequireJSON(),
		middleware.MaxBodySize(maxRequestBody),
	)

	http.NewSyncHandler(deps.Staging).Register(api)
	http.NewReviewHandler(deps.Staging).Register(api)
	http.NewReportHandler(deps.Reports).Register(api)
	if deps.Redis != nil {
		producer := stream.NewProducer(stream.NewRedisStream(deps.Redis, consumerGroup, deps.Log))
		http.NewJobHandler(producer, jobTypes(deps)...).Register(api)
	}

	return app, nil
}
