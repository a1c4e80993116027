package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"jobtrack_worker/adapter/out/persistence"
	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/service/staging"
	"jobtrack_worker/infra/database"
	"jobtrack_worker/infra/middleware"
	"jobtrack_worker/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func newTestApp(t *testing.T) (*fiber.App, *staging.Service) {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, persistence.Migrate(context.Background(), db))

	svc := staging.NewService(persistence.NewStagingAdapter(db), nil, staging.Config{}, zerolog.Nop())

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())

	health := NewHealthHandler().AddCheck("sqlite", CheckerFunc(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})).AddStats("sqlite_pool", func() map[string]any {
		return metrics.GetDBPoolStats(db.DB).ToMap()
	})
	health.Register(app)

	api := app.Group("/api/email-sync", middleware.SharedSecret(testSecret))
	NewSyncHandler(svc).Register(api)
	NewReviewHandler(svc).Register(api)
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path, secret string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if secret != "" {
		req.Header.Set(middleware.SecretHeader, secret)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func importRecord(id string, typ domain.EmailType, confidence float64) domain.ImportRecord {
	return domain.ImportRecord{
		MessageID: id,
		Subject:   "Interview with Acme",
		From:      "talent@acme.example",
		FromName:  "Acme Talent",
		To:        "me@example.com",
		Date:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Classification: domain.ClassificationResult{
			Type:       typ,
			Confidence: confidence,
			Source:     domain.SourceRule,
		},
	}
}

func TestSyncRequiresSecret(t *testing.T) {
	app, _ := newTestApp(t)
	body := fiber.Map{"records": []domain.ImportRecord{}}

	tests := []struct {
		name   string
		secret string
	}{
		{"missing", ""},
		{"wrong", "nope"},
		{"prefix of the real one", "s3c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := doJSON(t, app, fiber.MethodPost, "/api/email-sync/import", tt.secret, body)
			assert.Equal(t, fiber.StatusUnauthorized, status)

			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(raw, &resp))
			assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
		})
	}
}

func TestImportIsIdempotent(t *testing.T) {
	app, _ := newTestApp(t)
	body := fiber.Map{"records": []domain.ImportRecord{
		importRecord("<a@x>", domain.TypeInterview, 0.9),
		importRecord("b@x", domain.TypeOffer, 0.8),
		importRecord("c@x", domain.TypeInterview, 0.59),
		importRecord("", domain.TypeInterview, 0.9),
	}}

	status, raw := doJSON(t, app, fiber.MethodPost, "/api/email-sync/import", testSecret, body)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	var first domain.ImportSummary
	require.NoError(t, json.Unmarshal(raw, &first))
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, 1, first.Filtered)
	assert.Equal(t, 1, first.Errors)
	assert.Len(t, first.ErrorDetails, 1)

	_, raw = doJSON(t, app, fiber.MethodPost, "/api/email-sync/import", testSecret, body)
	var second domain.ImportSummary
	require.NoError(t, json.Unmarshal(raw, &second))
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 2, second.Skipped, "resubmission is a duplicate, not an error")
}

func TestImportRejectsMissingRecords(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/email-sync/import", testSecret, fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	req := httptest.NewRequest(fiber.MethodPost, "/api/email-sync/import", bytes.NewReader([]byte("{not json")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(middleware.SecretHeader, testSecret)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCorrectionsAndDelete(t *testing.T) {
	app, svc := newTestApp(t)
	_, err := svc.Submit(context.Background(), []domain.ImportRecord{
		importRecord("a@x", domain.TypeInterview, 0.9),
		importRecord("b@x", domain.TypeInterview, 0.9),
	})
	require.NoError(t, err)

	promoted := importRecord("p@x", domain.TypeOther, 0.9)
	body := fiber.Map{"corrections": []domain.CorrectionRecord{
		{MessageID: "a@x", OriginalType: domain.TypeInterview, CorrectedType: domain.TypeRejection},
		{MessageID: "b@x", OriginalType: domain.TypeInterview, CorrectedType: domain.TypeOther},
		{MessageID: "p@x", OriginalType: domain.TypeOther, CorrectedType: domain.TypeOffer, Record: &promoted},
		{MessageID: "zz@x", OriginalType: domain.TypeInterview, CorrectedType: domain.TypeOffer},
	}}
	status, raw := doJSON(t, app, fiber.MethodPost, "/api/email-sync/corrections", testSecret, body)
	require.Equal(t, fiber.StatusOK, status, string(raw))

	var sum domain.CorrectionSummary
	require.NoError(t, json.Unmarshal(raw, &sum))
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Deleted)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.NotFound)
	assert.Zero(t, sum.Errors)

	var del struct {
		Deleted bool `json:"deleted"`
	}
	status, raw = doJSON(t, app, fiber.MethodDelete, "/api/email-sync/messages/%3Cp@x%3E", testSecret, nil)
	require.Equal(t, fiber.StatusOK, status, string(raw))
	require.NoError(t, json.Unmarshal(raw, &del))
	assert.True(t, del.Deleted, "angle brackets are normalized away")

	_, raw = doJSON(t, app, fiber.MethodDelete, "/api/email-sync/messages/p@x", testSecret, nil)
	require.NoError(t, json.Unmarshal(raw, &del))
	assert.False(t, del.Deleted)
}

type failingCheck struct{}

func (failingCheck) Ping(context.Context) error { return errors.New("connection refused") }

type fixedBreaker string

func (b fixedBreaker) State() string { return string(b) }

func TestHealthAndReady(t *testing.T) {
	app, _ := newTestApp(t)

	status, raw := doJSON(t, app, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	var health struct {
		Stats map[string]map[string]any `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(raw, &health))
	assert.NotEmpty(t, health.Stats["sqlite_pool"]["status"])

	status, raw = doJSON(t, app, fiber.MethodGet, "/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status, string(raw))

	h := NewHealthHandler().
		AddCheck("postgres", failingCheck{}).
		AddBreaker("llm-runtime", fixedBreaker("open"))
	bare := fiber.New()
	h.Register(bare)

	status, raw = doJSON(t, bare, fiber.MethodGet, "/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	var body struct {
		Checks   map[string]string `json:"checks"`
		Breakers map[string]string `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Contains(t, body.Checks["postgres"], "unhealthy")
	assert.Equal(t, "open", body.Breakers["llm-runtime"])
}
