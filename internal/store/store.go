// Package store persists upload records, their derived profiles and the
// history of aggregations run against them.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/KaramelBytes/sheetlens/internal/profile"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown ids and for records owned by someone else.
var ErrNotFound = errors.New("record not found")

// Status tracks an upload through processing.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

// Processed holds what an upload derives from its table.
type Processed struct {
	Headers     []string       `json:"headers"`
	RowCount    int            `json:"rowCount"`
	ColumnCount int            `json:"columnCount"`
	Preview     [][]table.Cell `json:"data"`
	Profiles    profile.Set    `json:"summary"`
}

// Upload is the metadata record of one uploaded file.
type Upload struct {
	ID           string       `json:"id"`
	Owner        string       `json:"owner"`
	BlobKey      string       `json:"filename"`
	OriginalName string       `json:"originalName"`
	Size         int64        `json:"size"`
	MimeType     string       `json:"mimeType"`
	Format       table.Format `json:"format"`
	Status       Status       `json:"status"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	UploadedAt   time.Time    `json:"uploadDate"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Processed    *Processed   `json:"processedData,omitempty"`
}

// Analysis records one aggregation request and its result. UploadID is empty
// for resubmitted row sets.
type Analysis struct {
	ID        string            `json:"id"`
	Owner     string            `json:"owner"`
	UploadID  string            `json:"uploadId,omitempty"`
	Request   aggregate.Request `json:"request"`
	Series    aggregate.Series  `json:"chartData"`
	Summary   aggregate.Summary `json:"summary"`
	CreatedAt time.Time         `json:"timestamp"`
}

// Store is the persistence collaborator. Every lookup is scoped by owner.
type Store interface {
	// SaveUpload inserts or replaces an upload record.
	SaveUpload(ctx context.Context, u *Upload) error
	GetUpload(ctx context.Context, owner, id string) (*Upload, error)
	// ListUploads returns the owner's uploads, newest first. limit <= 0 means all.
	ListUploads(ctx context.Context, owner string, limit int) ([]*Upload, error)
	// DeleteUpload removes the upload and the analyses recorded against it.
	DeleteUpload(ctx context.Context, owner, id string) error
	AppendAnalysis(ctx context.Context, a *Analysis) error
	// ListAnalyses returns analyses newest first, optionally for one upload.
	ListAnalyses(ctx context.Context, owner, uploadID string, limit int) ([]*Analysis, error)
	Close() error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindPostgres Kind = "postgres"
)

// Open builds the configured Store. dir is used by the file store, dsn by postgres.
func Open(ctx context.Context, kind Kind, dir, dsn string) (Store, error) {
	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindFile, "":
		return NewFileStore(dir)
	case KindPostgres:
		if dsn == "" {
			return nil, errors.New("postgres store requires database_url")
		}
		return NewPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store %q (use memory|file|postgres)", kind)
}

// NewID returns a fresh record id.
func NewID() string { return uuid.NewString() }

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sortUploads(list []*Upload, limit int) []*Upload {
	sort.SliceStable(list, func(i, j int) bool { return list[i].UploadedAt.After(list[j].UploadedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

func sortAnalyses(list []*Analysis, limit int) []*Analysis {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
