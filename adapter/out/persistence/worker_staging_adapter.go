package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// StagingAdapter implements out.StagingRepository on Postgres or SQLite.
type StagingAdapter struct {
	db *sqlx.DB
}

func NewStagingAdapter(db *sqlx.DB) *StagingAdapter {
	return &StagingAdapter{db: db}
}

var _ out.StagingRepository = (*StagingAdapter)(nil)

const stagingColumns = `id, message_id, subject, from_addr, from_name, to_addr, sent_at, text_body,
	is_outbound, email_type, confidence, source, reason, extracted_data, company, job_title,
	status, job_id, created_at, updated_at, reviewed_at`

// stagedImportRow is the DB row model.
type stagedImportRow struct {
	ID            string         `db:"id"`
	MessageID     string         `db:"message_id"`
	Subject       string         `db:"subject"`
	FromAddr      string         `db:"from_addr"`
	FromName      string         `db:"from_name"`
	ToAddr        string         `db:"to_addr"`
	SentAt        sql.NullTime   `db:"sent_at"`
	TextBody      string         `db:"text_body"`
	IsOutbound    bool           `db:"is_outbound"`
	EmailType     string         `db:"email_type"`
	Confidence    float64        `db:"confidence"`
	Source        string         `db:"source"`
	Reason        string         `db:"reason"`
	ExtractedData string         `db:"extracted_data"`
	Company       sql.NullString `db:"company"`
	JobTitle      sql.NullString `db:"job_title"`
	Status        string         `db:"status"`
	JobID         sql.NullString `db:"job_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	ReviewedAt    sql.NullTime   `db:"reviewed_at"`
}

func (r *stagedImportRow) toDomain() (*domain.StagedImport, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", r.ID, err)
	}
	var data domain.ExtractedData
	if r.ExtractedData != "" {
		if err := json.Unmarshal([]byte(r.ExtractedData), &data); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
	}

	imp := &domain.StagedImport{
		ID:         id,
		MessageID:  r.MessageID,
		Subject:    r.Subject,
		From:       r.FromAddr,
		FromName:   r.FromName,
		To:         r.ToAddr,
		TextBody:   r.TextBody,
		IsOutbound: r.IsOutbound,
		Classification: domain.ClassificationResult{
			Type:          domain.EmailType(r.EmailType),
			Confidence:    r.Confidence,
			Source:        domain.ClassificationSource(r.Source),
			Reason:        r.Reason,
			ExtractedData: data,
		},
		Status:    domain.ImportStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.SentAt.Valid {
		imp.Date = r.SentAt.Time
	}
	if r.JobID.Valid {
		jobID := r.JobID.String
		imp.JobID = &jobID
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time
		imp.ReviewedAt = &t
	}
	return imp, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// =============================================================================
// Writes
// =============================================================================

func (a *StagingAdapter) Create(ctx context.Context, imp *domain.StagedImport) error {
	if imp.MessageID == "" {
		return fmt.Errorf("%w: empty message id", ErrInvalidInput)
	}
	data, err := json.Marshal(imp.Classification.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}

	query := a.db.Rebind(`
		INSERT INTO staged_imports (` + stagingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO NOTHING`)

	res, err := a.db.ExecContext(ctx, query,
		imp.ID.String(), imp.MessageID, imp.Subject, imp.From, imp.FromName, imp.To,
		nullTime(imp.Date), imp.TextBody, imp.IsOutbound,
		string(imp.Classification.Type), imp.Classification.Confidence,
		string(imp.Classification.Source), imp.Classification.Reason, string(data),
		nullString(imp.Classification.ExtractedData.Company),
		nullString(imp.Classification.ExtractedData.JobTitle),
		string(imp.Status), nullString(imp.JobID),
		imp.CreatedAt, imp.UpdatedAt, nullTimePtr(imp.ReviewedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert staged import: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert staged import: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (a *StagingAdapter) UpdateClassification(ctx context.Context, messageID string, result domain.ClassificationResult) error {
	data, err := json.Marshal(result.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}
	query := a.db.Rebind(`
		UPDATE staged_imports
		SET email_type = ?, confidence = ?, source = ?, reason = ?, extracted_data = ?,
		    company = ?, job_title = ?, updated_at = ?
		WHERE message_id = ?`)

	res, err := a.db.ExecContext(ctx, query,
		string(result.Type), result.Confidence, string(result.Source), result.Reason, string(data),
		nullString(result.ExtractedData.Company), nullString(result.ExtractedData.JobTitle),
		time.Now().UTC(), messageID,
	)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return requireAffected(res)
}

func (a *StagingAdapter) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ImportStatus, jobID *string) error {
	now := time.Now().UTC()
	reviewed := sql.NullTime{Time: now, Valid: status.IsTerminal()}

	query := a.db.Rebind(`
		UPDATE staged_imports
		SET status = ?, job_id = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?`)

	res, err := a.db.ExecContext(ctx, query, string(status), nullString(jobID), reviewed, now, id.String())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireAffected(res)
}

func (a *StagingAdapter) DeleteByMessageID(ctx context.Context, messageID string) (bool, error) {
	res, err := a.db.ExecContext(ctx, a.db.Rebind(`DELETE FROM staged_imports WHERE message_id = ?`), messageID)
	if err != nil {
		return false, fmt.Errorf("delete staged import: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete staged import: %w", err)
	}
	return n > 0, nil
}

// =============================================================================
// Reads
// =============================================================================

func (a *StagingAdapter) GetByMessageID(ctx context.Context, messageID string) (*domain.StagedImport, error) {
	return a.getOne(ctx, `message_id = ?`, messageID)
}

func (a *StagingAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedImport, error) {
	return a.getOne(ctx, `id = ?`, id.String())
}

func (a *StagingAdapter) getOne(ctx context.Context, where string, arg any) (*domain.StagedImport, error) {
	query := a.db.Rebind(`SELECT ` + stagingColumns + ` FROM staged_imports WHERE ` + where)

	var row stagedImportRow
	if err := a.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get staged import: %w", err)
	}
	return row.toDomain()
}

func (a *StagingAdapter) Exists(ctx context.Context, messageID string) (bool, error) {
	var n int
	query := a.db.Rebind(`SELECT COUNT(*) FROM staged_imports WHERE message_id = ?`)
	if err := a.db.GetContext(ctx, &n, query, messageID); err != nil {
		return false, fmt.Errorf("check staged import: %w", err)
	}
	return n > 0, nil
}

func (a *StagingAdapter) List(ctx context.Context, opts out.StagingListOptions) ([]*domain.StagedImport, error) {
	var conditions []string
	var args []any

	if opts.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*opts.Status))
	}
	if opts.IncompleteOnly {
		conditions = append(conditions, "(company IS NULL OR job_title IS NULL)")
	}

	query := `SELECT ` + stagingColumns + ` FROM staged_imports`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	var rows []stagedImportRow
	if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list staged imports: %w", err)
	}

	imports := make([]*domain.StagedImport, 0, len(rows))
	for i := range rows {
		imp, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

// =============================================================================
// Helpers
// =============================================================================

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation recognises unique-constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
