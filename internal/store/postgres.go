package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore persists records in PostgreSQL; derived artifacts are JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgres connects and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromDB wraps an existing connection without migrating.
func NewPostgresFromDB(db *sqlx.DB) *PostgresStore { return &PostgresStore{db: db} }

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type uploadRow struct {
	ID           string    `db:"id"`
	Owner        string    `db:"owner"`
	Filename     string    `db:"filename"`
	OriginalName string    `db:"original_name"`
	Size         int64     `db:"size"`
	MimeType     string    `db:"mime_type"`
	Format       string    `db:"format"`
	Status       string    `db:"status"`
	ErrorMessage string    `db:"error_message"`
	UploadedAt   time.Time `db:"uploaded_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Processed    []byte    `db:"processed"`
}

func (r uploadRow) upload() (*Upload, error) {
	u := &Upload{
		ID:           r.ID,
		Owner:        r.Owner,
		BlobKey:      r.Filename,
		OriginalName: r.OriginalName,
		Size:         r.Size,
		MimeType:     r.MimeType,
		Format:       table.Format(r.Format),
		Status:       Status(r.Status),
		ErrorMessage: r.ErrorMessage,
		UploadedAt:   r.UploadedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Processed) > 0 {
		var p Processed
		if err := json.Unmarshal(r.Processed, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal processed data: %w", err)
		}
		u.Processed = &p
	}
	return u, nil
}

const uploadColumns = `id, owner, filename, original_name, size, mime_type, format,
	status, error_message, uploaded_at, updated_at, processed`

func (s *PostgresStore) SaveUpload(ctx context.Context, u *Upload) error {
	// nil stays a NULL parameter
	var processed any
	if u.Processed != nil {
		b, err := json.Marshal(u.Processed)
		if err != nil {
			return fmt.Errorf("failed to marshal processed data: %w", err)
		}
		processed = b
	}
	query := `INSERT INTO uploads (` + uploadColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		filename = EXCLUDED.filename, size = EXCLUDED.size, mime_type = EXCLUDED.mime_type,
		format = EXCLUDED.format, status = EXCLUDED.status, error_message = EXCLUDED.error_message,
		updated_at = EXCLUDED.updated_at, processed = EXCLUDED.processed`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Owner, u.BlobKey, u.OriginalName, u.Size, u.MimeType, string(u.Format),
		string(u.Status), u.ErrorMessage, u.UploadedAt, u.UpdatedAt, processed,
	)
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, owner, id string) (*Upload, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var row uploadRow
	err := s.db.GetContext(ctx, &row, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return row.upload()
}

func (s *PostgresStore) ListUploads(ctx context.Context, owner string, limit int) ([]*Upload, error) {
	var rows []uploadRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+uploadColumns+` FROM uploads
		WHERE owner = $1 ORDER BY uploaded_at DESC LIMIT NULLIF($2, 0)`, owner, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	out := make([]*Upload, 0, len(rows))
	for _, r := range rows {
		u, err := r.upload()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *PostgresStore) DeleteUpload(ctx context.Context, owner, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type analysisRow struct {
	ID        string         `db:"id"`
	Owner     string         `db:"owner"`
	UploadID  sql.NullString `db:"upload_id"`
	Request   []byte         `db:"request"`
	Series    []byte         `db:"series"`
	Summary   []byte         `db:"summary"`
	CreatedAt time.Time      `db:"created_at"`
}

func (s *PostgresStore) AppendAnalysis(ctx context.Context, a *Analysis) error {
	req, err := json.Marshal(a.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	series, err := json.Marshal(a.Series)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}
	summary, err := json.Marshal(a.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	uploadID := sql.NullString{String: a.UploadID, Valid: a.UploadID != ""}
	_, err = s.db.ExecContext(ctx, `INSERT INTO analyses (id, owner, upload_id, request, series, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Owner, uploadID, req, series, summary, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, owner, uploadID string, limit int) ([]*Analysis, error) {
	query := `SELECT id, owner, upload_id, request, series, summary, created_at FROM analyses WHERE owner = $1`
	args := []any{owner}
	if uploadID != "" {
		if !validID(uploadID) {
			return nil, nil
		}
		query += ` AND upload_id = $2`
		args = append(args, uploadID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT NULLIF($%d, 0)`, len(args)+1)
	args = append(args, max(limit, 0))

	var rows []analysisRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	out := make([]*Analysis, 0, len(rows))
	for _, r := range rows {
		a := &Analysis{ID: r.ID, Owner: r.Owner, UploadID: r.UploadID.String, CreatedAt: r.CreatedAt}
		if err := json.Unmarshal(r.Request, &a.Request); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request: %w", err)
		}
		if err := json.Unmarshal(r.Series, &a.Series); err != nil {
			return nil, fmt.Errorf("failed to unmarshal series: %w", err)
		}
		if err := json.Unmarshal(r.Summary, &a.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
