// Package service runs the upload lifecycle: store the bytes, derive the
// table profile, persist the record, and aggregate on demand.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/KaramelBytes/sheetlens/internal/analysis"
	"github.com/KaramelBytes/sheetlens/internal/logging"
	"github.com/KaramelBytes/sheetlens/internal/metrics"
	"github.com/KaramelBytes/sheetlens/internal/store"
	"github.com/KaramelBytes/sheetlens/internal/table"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type; only xlsx, xls, csv and tsv are accepted")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrNotProcessed    = errors.New("upload has not been processed successfully")
	ErrUnknownColumn   = errors.New("unknown column")
)

// DefaultOwner scopes requests that carry no owner.
const DefaultOwner = "anonymous"

// Config holds the service limits.
type Config struct {
	MaxUploadBytes int64
	HistoryLimit   int
	Analysis       analysis.Options
}

func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: 10 << 20,
		HistoryLimit:   20,
		Analysis:       analysis.DefaultOptions(),
	}
}

// Service is safe for concurrent use when its Store and Blobs are.
type Service struct {
	store   store.Store
	blobs   store.Blobs
	metrics *metrics.Registry
	log     *slog.Logger
	cfg     Config
	now     func() time.Time
}

// New wires a Service. m and log may be nil.
func New(st store.Store, blobs store.Blobs, m *metrics.Registry, log *slog.Logger, cfg Config) *Service {
	if log == nil {
		log = logging.Discard()
	}
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	return &Service{
		store:   st,
		blobs:   blobs,
		metrics: m,
		log:     log.With("component", "service"),
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the effective limits.
func (s *Service) Config() Config { return s.cfg }

func owner(o string) string {
	if o = strings.TrimSpace(o); o == "" {
		return DefaultOwner
	}
	return o
}

var extFormats = map[string]table.Format{
	".csv":  table.FormatCSV,
	".tsv":  table.FormatTSV,
	".xlsx": table.FormatXLSX,
	".xlsm": table.FormatXLSX,
	".xls":  table.FormatXLS,
}

var mimeFormats = map[string]table.Format{
	"text/csv":                  table.FormatCSV,
	"application/csv":           table.FormatCSV,
	"text/tab-separated-values": table.FormatTSV,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": table.FormatXLSX,
	"application/vnd.ms-excel": table.FormatXLS,
}

// DetectFormat accepts a file when either its extension or its MIME type is
// a supported spreadsheet type. The extension wins when both are known.
func DetectFormat(name, mimeType string) (table.Format, error) {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(name))]; ok {
		return f, nil
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		if f, ok := mimeFormats[strings.ToLower(mt)]; ok {
			return f, nil
		}
	}
	return "", ErrUnsupportedType
}

// UploadInput is one received file.
type UploadInput struct {
	Owner    string
	Name     string
	MimeType string
	Data     []byte
}

// Upload stores the file and processes it. When processing fails the record
// is kept with status error and returned alongside the error.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*store.Upload, error) {
	format, err := DetectFormat(in.Name, in.MimeType)
	if err != nil {
		s.metrics.Upload("rejected")
		return nil, err
	}
	if int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		s.metrics.Upload("rejected")
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, len(in.Data), s.cfg.MaxUploadBytes)
	}
	key, err := s.blobs.Put(ctx, in.Name, in.Data)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &store.Upload{
		ID:           store.NewID(),
		Owner:        owner(in.Owner),
		BlobKey:      key,
		OriginalName: filepath.Base(in.Name),
		Size:         int64(len(in.Data)),
		MimeType:     in.MimeType,
		Format:       format,
		Status:       store.StatusProcessing,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if err := s.store.SaveUpload(ctx, u); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}
	if err := s.process(ctx, u, in.Data); err != nil {
		return u, err
	}
	return u, nil
}

// process derives the profile of data into u and saves u either way.
func (s *Service) process(ctx context.Context, u *store.Upload, data []byte) error {
	start := time.Now()
	rep, _, perr := analysis.AnalyzeBytes(u.OriginalName, data, u.Format, s.cfg.Analysis)
	s.metrics.ObserveProcessing(start)
	u.UpdatedAt = s.now()
	if perr != nil {
		u.Status = store.StatusError
		u.ErrorMessage = perr.Error()
		u.Processed = nil
	} else {
		u.Status = store.StatusProcessed
		u.ErrorMessage = ""
		u.Processed = &store.Processed{
			Headers:     rep.Headers,
			RowCount:    rep.RowCount,
			ColumnCount: rep.ColumnCount,
			Preview:     rep.Preview,
			Profiles:    rep.Profiles,
		}
	}
	if err := s.store.SaveUpload(ctx, u); err != nil {
		if perr != nil {
			return err
		}
		// keep the record out of the processing state
		u.Status = store.StatusError
		u.ErrorMessage = "save processed data: " + err.Error()
		u.Processed = nil
		if serr := s.store.SaveUpload(ctx, u); serr != nil {
			return serr
		}
		s.metrics.Upload(string(u.Status))
		s.log.ErrorContext(ctx, "saving processed upload failed", "id", u.ID, "error", err)
		return fmt.Errorf("save processed data: %w", err)
	}
	s.metrics.Upload(string(u.Status))
	if perr != nil {
		s.log.WarnContext(ctx, "upload processing failed", "id", u.ID, "name", u.OriginalName, "error", perr)
		return fmt.Errorf("failed to process file: %w", perr)
	}
	s.log.InfoContext(ctx, "upload processed", "id", u.ID, "name", u.OriginalName,
		"rows", rep.RowCount, "columns", rep.ColumnCount, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// History lists the owner's most recent uploads.
func (s *Service) History(ctx context.Context, ownerID string) ([]*store.Upload, error) {
	return s.store.ListUploads(ctx, owner(ownerID), s.cfg.HistoryLimit)
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*store.Upload, error) {
	return s.store.GetUpload(ctx, owner(ownerID), id)
}

// Delete removes the record, its analyses and its stored bytes.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	u, err := s.store.GetUpload(ctx, owner(ownerID), id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUpload(ctx, u.Owner, u.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, u.BlobKey); err != nil {
		s.log.WarnContext(ctx, "stored file not removed", "id", u.ID, "error", err)
	}
	return nil
}

// Reprocess re-derives the profile from the stored bytes.
func (s *Service) Reprocess(ctx context.Context, ownerID, id string) (*store.Upload, error) {
	u, err := s.store.GetUpload(ctx, owner(ownerID), id)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, u.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("load stored file: %w", err)
	}
	u.Status = store.StatusProcessing
	if err := s.process(ctx, u, data); err != nil {
		return u, err
	}
	return u, nil
}

// Report builds the dataset report of a processed upload from its stored
// profile and preview.
func (s *Service) Report(ctx context.Context, ownerID, id string) (*analysis.Report, error) {
	u, err := s.processed(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	p := u.Processed
	rep := &analysis.Report{
		Name:        u.OriginalName,
		Format:      u.Format,
		Headers:     p.Headers,
		RowCount:    p.RowCount,
		ColumnCount: p.ColumnCount,
		Preview:     p.Preview,
		Profiles:    p.Profiles,
	}
	rep.SetSampleRows(s.cfg.Analysis.SampleRows)
	return rep, nil
}

func (s *Service) processed(ctx context.Context, ownerID, id string) (*store.Upload, error) {
	u, err := s.store.GetUpload(ctx, owner(ownerID), id)
	if err != nil {
		return nil, err
	}
	if u.Status != store.StatusProcessed || u.Processed == nil {
		return nil, ErrNotProcessed
	}
	return u, nil
}

// Table reloads the full normalized table of a processed upload.
func (s *Service) Table(ctx context.Context, ownerID, id string) (*table.Table, *store.Upload, error) {
	u, err := s.processed(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, u.BlobKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load stored file: %w", err)
	}
	t, err := table.Load(data, u.Format, s.cfg.Analysis.Table)
	if err != nil {
		return nil, nil, err
	}
	return t, u, nil
}

// GenerateChart aggregates the full table of a processed upload and records
// the result.
func (s *Service) GenerateChart(ctx context.Context, ownerID, id string, req aggregate.Request) (*store.Analysis, error) {
	t, u, err := s.Table(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{req.Key, req.Value} {
		if !hasHeader(t.Headers, col) {
			return nil, fmt.Errorf("%w %q", ErrUnknownColumn, col)
		}
	}
	return s.record(ctx, u.Owner, u.ID, t.Records(), req)
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

// Analyze aggregates a resubmitted row set and records the result.
func (s *Service) Analyze(ctx context.Context, ownerID string, rows []table.Record, req aggregate.Request) (*store.Analysis, error) {
	return s.record(ctx, owner(ownerID), "", rows, req)
}

func (s *Service) record(ctx context.Context, ownerID, uploadID string, rows []table.Record, req aggregate.Request) (*store.Analysis, error) {
	if req.Chart == "" {
		req.Chart = aggregate.ChartBar
	}
	if req.Reduction == "" {
		req.Reduction = aggregate.ReduceMean
	}
	a := &store.Analysis{
		ID:        store.NewID(),
		Owner:     ownerID,
		UploadID:  uploadID,
		Request:   req,
		Series:    aggregate.Aggregate(rows, req),
		Summary:   aggregate.Summarize(rows, req),
		CreatedAt: s.now(),
	}
	if err := s.store.AppendAnalysis(ctx, a); err != nil {
		return nil, err
	}
	s.metrics.Analysis(string(req.Chart))
	if a.Series.Empty() {
		s.log.InfoContext(ctx, "aggregation produced an empty series", "key", req.Key, "value", req.Value, "rows", len(rows))
	}
	return a, nil
}

// Analyses lists recorded aggregations, optionally for one upload.
func (s *Service) Analyses(ctx context.Context, ownerID, uploadID string) ([]*store.Analysis, error) {
	o := owner(ownerID)
	if uploadID != "" {
		if _, err := s.store.GetUpload(ctx, o, uploadID); err != nil {
			return nil, err
		}
	}
	return s.store.ListAnalyses(ctx, o, uploadID, s.cfg.HistoryLimit)
}
