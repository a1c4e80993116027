// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/common"

	"github.com/goccy/go-json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Run Report Adapter
// =============================================================================

const (
	collectionReports = "run_reports"

	// Per-message results above this size are gzipped.
	reportCompressionThreshold = 512

	reportRetention = 90 * 24 * time.Hour
)

var ErrReportNotFound = fmt.Errorf("run report: %w", common.ErrNotFound)

// ReportAdapter implements out.ReportRepository using MongoDB.
type ReportAdapter struct {
	collection *mongo.Collection
}

var _ out.ReportRepository = (*ReportAdapter)(nil)

func NewReportAdapter(db *mongo.Database) *ReportAdapter {
	return &ReportAdapter{collection: db.Collection(collectionReports)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type reportDocument struct {
	RunID      string         `bson:"run_id"`
	StartedAt  time.Time      `bson:"started_at"`
	DurationMS int64          `bson:"duration_ms"`
	Candidates int            `bson:"candidates"`
	Processed  int            `bson:"processed"`
	Staged     int            `bson:"staged"`
	Skipped    int            `bson:"skipped"`
	Filtered   int            `bson:"filtered"`
	Deferred   int            `bson:"deferred"`
	Failed     int            `bson:"failed"`
	Errors     []string       `bson:"errors,omitempty"`
	ByType     map[string]int `bson:"by_type,omitempty"`
	BySource   map[string]int `bson:"by_source,omitempty"`

	// Per-message results (JSON, possibly gzipped)
	Results      []byte `bson:"results,omitempty"`
	IsCompressed bool   `bson:"is_compressed"`

	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// =============================================================================
// Operations
// =============================================================================

func (a *ReportAdapter) Save(ctx context.Context, summary *domain.BatchSummary) error {
	doc, err := toDocument(summary)
	if err != nil {
		return fmt.Errorf("failed to convert report to document: %w", err)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, bson.M{"run_id": summary.RunID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (a *ReportAdapter) GetByRunID(ctx context.Context, runID string) (*domain.BatchSummary, error) {
	var doc reportDocument
	err := a.collection.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return fromDocument(&doc, true)
}

// ListRecent returns summaries without per-message results, newest first.
func (a *ReportAdapter) ListRecent(ctx context.Context, limit int) ([]*domain.BatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"results": 0})

	cursor, err := a.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*domain.BatchSummary
	for cursor.Next(ctx) {
		var doc reportDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		s, err := fromDocument(&doc, false)
		if err != nil {
			return nil, err
		}
		reports = append(reports, s)
	}
	return reports, cursor.Err()
}

// =============================================================================
// Conversion Helpers
// =============================================================================

func toDocument(s *domain.BatchSummary) (*reportDocument, error) {
	now := time.Now()
	doc := &reportDocument{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		DurationMS: s.Duration.Milliseconds(),
		Candidates: s.Candidates,
		Processed:  s.Processed,
		Staged:     s.Staged,
		Skipped:    s.Skipped,
		Filtered:   s.Filtered,
		Deferred:   s.Deferred,
		Failed:     s.Failed,
		Errors:     s.Errors,
		ByType:     make(map[string]int, len(s.ByType)),
		BySource:   make(map[string]int, len(s.BySource)),
		CreatedAt:  now,
		ExpiresAt:  now.Add(reportRetention),
	}
	for k, v := range s.ByType {
		doc.ByType[string(k)] = v
	}
	for k, v := range s.BySource {
		doc.BySource[string(k)] = v
	}

	if len(s.Results) > 0 {
		data, err := json.Marshal(s.Results)
		if err != nil {
			return nil, err
		}
		if len(data) > reportCompressionThreshold {
			if data, err = compress(data); err != nil {
				return nil, err
			}
			doc.IsCompressed = true
		}
		doc.Results = data
	}
	return doc, nil
}

func fromDocument(doc *reportDocument, withResults bool) (*domain.BatchSummary, error) {
	s := &domain.BatchSummary{
		RunID:      doc.RunID,
		StartedAt:  doc.StartedAt,
		Duration:   time.Duration(doc.DurationMS) * time.Millisecond,
		Candidates: doc.Candidates,
		Processed:  doc.Processed,
		Staged:     doc.Staged,
		Skipped:    doc.Skipped,
		Filtered:   doc.Filtered,
		Deferred:   doc.Deferred,
		Failed:     doc.Failed,
		Errors:     doc.Errors,
		ByType:     make(map[domain.EmailType]int, len(doc.ByType)),
		BySource:   make(map[domain.ClassificationSource]int, len(doc.BySource)),
	}
	for k, v := range doc.ByType {
		s.ByType[domain.EmailType(k)] = v
	}
	for k, v := range doc.BySource {
		s.BySource[domain.ClassificationSource(k)] = v
	}

	if withResults && len(doc.Results) > 0 {
		data := doc.Results
		if doc.IsCompressed {
			var err error
			if data, err = decompress(data); err != nil {
				return nil, fmt.Errorf("failed to decompress results: %w", err)
			}
		}
		if err := json.Unmarshal(data, &s.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
	}
	return s, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
