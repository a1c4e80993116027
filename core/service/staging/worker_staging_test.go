package staging

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobtrack_worker/adapter/out/persistence"
	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/common"
	"jobtrack_worker/infra/database"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *persistence.StagingAdapter) {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, persistence.Migrate(context.Background(), db))

	repo := persistence.NewStagingAdapter(db)
	return NewService(repo, nil, Config{}, zerolog.Nop()), repo
}

func record(id string, typ domain.EmailType, confidence float64) domain.ImportRecord {
	return domain.ImportRecord{
		MessageID: id,
		Subject:   "Your application to Acme",
		From:      "careers@acme.example",
		FromName:  "Acme Careers",
		To:        "me@example.com",
		Date:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		TextBody:  "Thanks for applying.",
		Classification: domain.ClassificationResult{
			Type:       typ,
			Confidence: confidence,
			Source:     domain.SourceRule,
			Reason:     "response-received-subject",
			ExtractedData: domain.ExtractedData{
				Company: domain.Str("Acme"),
			},
		},
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sum, err := svc.Submit(ctx, []domain.ImportRecord{record("<m1@x>", domain.TypeJobResponse, 0.95)})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)

	sum, err = svc.Submit(ctx, []domain.ImportRecord{record("m1@x", domain.TypeJobResponse, 0.95)})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.Errors)

	all, err := repo.List(ctx, out.StagingListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "m1@x", all[0].MessageID)
	assert.Equal(t, domain.StatusPending, all[0].Status)
	assert.Equal(t, "Acme", domain.Deref(all[0].Classification.ExtractedData.Company))
}

func TestSubmitConfidenceGate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sum, err := svc.Submit(ctx, []domain.ImportRecord{
		record("at@x", domain.TypeInterview, 0.6),
		record("below@x", domain.TypeInterview, 0.59),
		record("other@x", domain.TypeOther, 0.99),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 2, sum.Filtered)

	ok, err := repo.Exists(ctx, "at@x")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(ctx, "below@x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitIsolatesBadEntries(t *testing.T) {
	svc, _ := newTestService(t)
	bad := record("", domain.TypeInterview, 0.9)
	wrong := record("w@x", "spam", 0.9)

	sum, err := svc.Submit(context.Background(), []domain.ImportRecord{bad, record("ok@x", domain.TypeOffer, 0.9), wrong})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 2, sum.Errors)
	assert.Len(t, sum.ErrorDetails, 2)
}

func TestCorrectRelabelKeepsStatusAndData(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	_, err := svc.Submit(ctx, []domain.ImportRecord{record("r@x", domain.TypeJobResponse, 0.95)})
	require.NoError(t, err)

	sum, err := svc.Correct(ctx, []domain.CorrectionRecord{
		{MessageID: "r@x", OriginalType: domain.TypeJobResponse, CorrectedType: domain.TypeRejection},
		{MessageID: "missing@x", OriginalType: domain.TypeJobResponse, CorrectedType: domain.TypeRejection},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.NotFound)

	imp, err := repo.GetByMessageID(ctx, "r@x")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeRejection, imp.Classification.Type)
	assert.Equal(t, domain.ManualConfidence, imp.Classification.Confidence)
	assert.Equal(t, domain.SourceManual, imp.Classification.Source)
	assert.Equal(t, domain.StatusPending, imp.Status)
	assert.Equal(t, "Acme", domain.Deref(imp.Classification.ExtractedData.Company))
}

func TestCorrectPromotionCreatesAtFullConfidence(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	rec := record("p@x", domain.TypeOther, 0.3)
	sum, err := svc.Correct(ctx, []domain.CorrectionRecord{{
		MessageID:     "p@x",
		OriginalType:  domain.TypeOther,
		CorrectedType: domain.TypeInterview,
		Record:        &rec,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)

	imp, err := repo.GetByMessageID(ctx, "p@x")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeInterview, imp.Classification.Type)
	assert.Equal(t, 1.0, imp.Classification.Confidence)
	assert.Equal(t, domain.StatusPending, imp.Status)

	sum, err = svc.Correct(ctx, []domain.CorrectionRecord{{MessageID: "q@x", OriginalType: domain.TypeOther, CorrectedType: domain.TypeOffer}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
}

func TestCorrectDemotionDeletes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	_, err := svc.Submit(ctx, []domain.ImportRecord{record("d@x", domain.TypeRejection, 0.95)})
	require.NoError(t, err)

	sum, err := svc.Correct(ctx, []domain.CorrectionRecord{{MessageID: "d@x", OriginalType: domain.TypeRejection, CorrectedType: domain.TypeOther}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Deleted)

	_, err = repo.GetByMessageID(ctx, "d@x")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	sum, err = svc.Correct(ctx, []domain.CorrectionRecord{{MessageID: "d@x", OriginalType: domain.TypeRejection, CorrectedType: domain.TypeOther}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.NotFound)
}

func TestReviewTransitions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	_, err := svc.Submit(ctx, []domain.ImportRecord{record("t@x", domain.TypeOffer, 0.9)})
	require.NoError(t, err)
	imp, err := repo.GetByMessageID(ctx, "t@x")
	require.NoError(t, err)

	jobID := "job-42"
	got, err := svc.Approve(ctx, imp.ID, &jobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, "job-42", domain.Deref(got.JobID))
	assert.NotNil(t, got.ReviewedAt)

	_, err = svc.Reject(ctx, imp.ID)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))

	got, err = svc.Restore(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.JobID)

	got, err = svc.Skip(ctx, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, got.Status)

	pending := domain.StatusPending
	list, err := svc.List(ctx, &pending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBackfillIsFillOnly(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	_, err := svc.Submit(ctx, []domain.ImportRecord{record("b@x", domain.TypeJobResponse, 0.95)})
	require.NoError(t, err)

	incomplete, err := svc.Incomplete(ctx, 10)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)

	changed, err := svc.Backfill(ctx, "b@x", domain.ExtractedData{
		Company:  domain.Str("Other Corp"),
		JobTitle: domain.Str("Platform Engineer"),
	})
	require.NoError(t, err)
	assert.True(t, changed)

	imp, err := repo.GetByMessageID(ctx, "b@x")
	require.NoError(t, err)
	assert.Equal(t, "Acme", domain.Deref(imp.Classification.ExtractedData.Company))
	assert.Equal(t, "Platform Engineer", domain.Deref(imp.Classification.ExtractedData.JobTitle))

	incomplete, err = svc.Incomplete(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}

type memSeen struct {
	seen      map[string]bool
	forgotten []string
}

func (m *memSeen) MarkSeen(_ context.Context, id string) (bool, error) {
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memSeen) Forget(_ context.Context, id string) error {
	delete(m.seen, id)
	m.forgotten = append(m.forgotten, id)
	return nil
}

func TestSeenFilterShortCircuits(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestService(t)
	seen := &memSeen{seen: map[string]bool{}}
	svc := NewService(repo, seen, Config{}, zerolog.Nop())

	sum, err := svc.Submit(ctx, []domain.ImportRecord{record("s@x", domain.TypeOffer, 0.9)})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Processed)
	assert.True(t, seen.seen["s@x"])

	sum, err = svc.Submit(ctx, []domain.ImportRecord{
		record("s@x", domain.TypeOffer, 0.9),
		record("", domain.TypeOffer, 0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Errors)
}

func TestFilteredRecordCanBeStagedLater(t *testing.T) {
	ctx := context.Background()
	_, repo := newTestService(t)
	seen := &memSeen{seen: map[string]bool{}}
	svc := NewService(repo, seen, Config{}, zerolog.Nop())

	sum, err := svc.Submit(ctx, []domain.ImportRecord{record("m@x", domain.TypeInterview, 0.59)})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Filtered)
	assert.False(t, seen.seen["m@x"])
	assert.Contains(t, seen.forgotten, "m@x")

	sum, err = svc.Submit(ctx, []domain.ImportRecord{record("m@x", domain.TypeInterview, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Zero(t, sum.Skipped)

	ok, err := repo.Exists(ctx, "m@x")
	require.NoError(t, err)
	assert.True(t, ok)
}
