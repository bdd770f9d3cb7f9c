package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/KaramelBytes/sheetlens/internal/metrics"
	"github.com/KaramelBytes/sheetlens/internal/profile"
	"github.com/KaramelBytes/sheetlens/internal/store"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "k,v,note\nA,10,x\nA,30,\nB,20,y\n,,\nC,n/a,z\n"

func newService(t *testing.T) (*Service, *store.MemoryBlobs, *metrics.Registry) {
	t.Helper()
	blobs := store.NewMemoryBlobs()
	m := metrics.New()
	cfg := DefaultConfig()
	cfg.MaxUploadBytes = 1 << 10
	return New(store.NewMemory(), blobs, m, nil, cfg), blobs, m
}

func upload(t *testing.T, s *Service, owner, name, body string) *store.Upload {
	t.Helper()
	u, err := s.Upload(context.Background(), UploadInput{Owner: owner, Name: name, MimeType: "text/csv", Data: []byte(body)})
	require.NoError(t, err)
	return u
}

func TestUploadProcessesFile(t *testing.T) {
	s, blobs, m := newService(t)
	ctx := context.Background()
	u := upload(t, s, "alice", "sales.csv", salesCSV)

	assert.Equal(t, store.StatusProcessed, u.Status)
	assert.Equal(t, table.FormatCSV, u.Format)
	require.NotNil(t, u.Processed)
	assert.Equal(t, []string{"k", "v", "note"}, u.Processed.Headers)
	assert.Equal(t, 4, u.Processed.RowCount, "the blank row is dropped")
	assert.Len(t, u.Processed.Preview, 4)

	p, ok := u.Processed.Profiles.Get("v")
	require.True(t, ok)
	num, ok := p.(*profile.NumericProfile)
	require.True(t, ok)
	assert.Equal(t, 3, num.Count)
	assert.Equal(t, 1, num.NullCount)
	assert.Equal(t, 20.0, num.Mean)

	data, err := blobs.Get(ctx, u.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, salesCSV, string(data))

	got, err := s.Get(ctx, "alice", u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = s.Get(ctx, "bob", u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	hist, err := s.History(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("processed")))
}

func TestUploadRejections(t *testing.T) {
	s, _, m := newService(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, UploadInput{Name: "notes.pdf", MimeType: "application/pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Upload(ctx, UploadInput{Name: "big.csv", Data: []byte(strings.Repeat("a,b\n", 1000))})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues("rejected")))

	hist, err := s.History(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, hist, "rejected files leave no record")
}

func TestUploadDecodeFailureIsRecorded(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	u, err := s.Upload(ctx, UploadInput{Name: "broken.xlsx", Data: []byte("not a zip")})
	require.Error(t, err)
	assert.ErrorIs(t, err, table.ErrDecode)
	require.NotNil(t, u)
	assert.Equal(t, store.StatusError, u.Status)
	assert.NotEmpty(t, u.ErrorMessage)
	assert.Nil(t, u.Processed)

	stored, err := s.Get(ctx, "", u.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, stored.Status)
	assert.Equal(t, DefaultOwner, stored.Owner)

	_, err = s.Report(ctx, "", u.ID)
	assert.ErrorIs(t, err, ErrNotProcessed)
	_, err = s.GenerateChart(ctx, "", u.ID, aggregate.Request{Key: "a", Value: "b"})
	assert.ErrorIs(t, err, ErrNotProcessed)

	u, err = s.Upload(ctx, UploadInput{Name: "empty.csv", Data: nil})
	assert.ErrorIs(t, err, table.ErrEmptySource)
	assert.Equal(t, store.StatusError, u.Status)
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name, mime string
		want       table.Format
		ok         bool
	}{
		{"a.CSV", "", table.FormatCSV, true},
		{"a.xlsx", "application/octet-stream", table.FormatXLSX, true},
		{"a.xls", "", table.FormatXLS, true},
		{"a.tsv", "", table.FormatTSV, true},
		{"upload", "text/csv; charset=utf-8", table.FormatCSV, true},
		{"upload", "application/vnd.ms-excel", table.FormatXLS, true},
		{"a.txt", "text/plain", "", false},
		{"a.docx", "", "", false},
	}
	for _, c := range cases {
		got, err := DetectFormat(c.name, c.mime)
		if !c.ok {
			assert.ErrorIs(t, err, ErrUnsupportedType, c.name)
			continue
		}
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestGenerateChartAggregatesFullTable(t *testing.T) {
	s, _, m := newService(t)
	ctx := context.Background()
	u := upload(t, s, "alice", "sales.csv", salesCSV)

	a, err := s.GenerateChart(ctx, "alice", u.ID, aggregate.Request{Key: "k", Value: "v"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, a.UploadID)
	assert.Equal(t, []string{"A", "B"}, a.Series.Labels)
	assert.Equal(t, []float64{20, 20}, a.Series.Values)
	assert.Equal(t, aggregate.ChartBar, a.Request.Chart)
	assert.Equal(t, aggregate.ReduceMean, a.Request.Reduction)
	assert.Equal(t, 4, a.Summary.TotalRecords)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("bar")))

	_, err = s.GenerateChart(ctx, "alice", u.ID, aggregate.Request{Key: "k", Value: "missing"})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	list, err := s.Analyses(ctx, "alice", u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = s.Analyses(ctx, "bob", u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeResubmittedRows(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	rows := []table.Record{
		{"k": table.StringCell("A"), "v": table.StringCell("10")},
		{"k": table.StringCell("A"), "v": table.StringCell("30")},
		{"k": table.StringCell("B"), "v": table.NumberCell(20)},
	}
	a, err := s.Analyze(ctx, "", rows, aggregate.Request{Key: "k", Value: "v", Chart: aggregate.ChartPie, Reduction: aggregate.ReduceSum})
	require.NoError(t, err)
	assert.Empty(t, a.UploadID)
	assert.Equal(t, []string{"A", "B"}, a.Series.Labels)
	assert.Equal(t, []float64{40, 20}, a.Series.Values)

	empty, err := s.Analyze(ctx, "", rows, aggregate.Request{Key: "v", Value: "k"})
	require.NoError(t, err)
	assert.True(t, empty.Series.Empty())
	assert.Nil(t, empty.Summary.ValueStats)

	list, err := s.Analyses(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestReprocessReportAndDelete(t *testing.T) {
	s, blobs, _ := newService(t)
	ctx := context.Background()
	u := upload(t, s, "alice", "sales.csv", salesCSV)
	_, err := s.GenerateChart(ctx, "alice", u.ID, aggregate.Request{Key: "k", Value: "v"})
	require.NoError(t, err)

	again, err := s.Reprocess(ctx, "alice", u.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusProcessed, again.Status)
	assert.Equal(t, u.Processed.RowCount, again.Processed.RowCount)

	rep, err := s.Report(ctx, "alice", u.ID)
	require.NoError(t, err)
	md := rep.Markdown()
	assert.Contains(t, md, "File: sales.csv")
	assert.Contains(t, md, "- v: numeric (count 3, null 1)")

	require.NoError(t, s.Delete(ctx, "alice", u.ID))
	_, err = s.Get(ctx, "alice", u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = blobs.Get(ctx, u.BlobKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
	list, err := s.Analyses(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, s.Delete(ctx, "alice", u.ID), store.ErrNotFound)
}

func TestUploadNonFiniteValuesPersist(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := New(st, store.NewMemoryBlobs(), nil, nil, DefaultConfig())
	ctx := context.Background()

	for _, body := range []string{"x\nInfinity\n-Infinity\n", "x\n1e999\n5\n"} {
		u, err := s.Upload(ctx, UploadInput{Name: "inf.csv", Data: []byte(body)})
		require.NoError(t, err, body)
		assert.Equal(t, store.StatusProcessed, u.Status, body)

		stored, err := s.Get(ctx, "", u.ID)
		require.NoError(t, err, body)
		assert.Equal(t, store.StatusProcessed, stored.Status, body)
		p, ok := stored.Processed.Profiles.Get("x")
		require.True(t, ok, body)
		num, ok := p.(*profile.NumericProfile)
		require.True(t, ok, body)
		assert.True(t, math.IsInf(num.Max, 1), body)

		_, err = json.Marshal(stored)
		require.NoError(t, err, body)
	}

	u, err := s.Upload(ctx, UploadInput{Name: "mixed.csv", Data: []byte("x\nInfinity\n-Infinity\n")})
	require.NoError(t, err)
	p, _ := u.Processed.Profiles.Get("x")
	num := p.(*profile.NumericProfile)
	assert.True(t, math.IsInf(num.Min, -1))
	assert.True(t, math.IsNaN(num.Mean))
}

// failingStore rejects records that carry processed data.
type failingStore struct {
	store.Store
}

func (f failingStore) SaveUpload(ctx context.Context, u *store.Upload) error {
	if u.Status == store.StatusProcessed {
		return errors.New("disk full")
	}
	return f.Store.SaveUpload(ctx, u)
}

func TestUploadSaveFailureMarksError(t *testing.T) {
	s := New(failingStore{store.NewMemory()}, store.NewMemoryBlobs(), nil, nil, DefaultConfig())
	ctx := context.Background()

	u, err := s.Upload(ctx, UploadInput{Name: "sales.csv", Data: []byte(salesCSV)})
	require.Error(t, err)
	require.NotNil(t, u)

	stored, err := s.Get(ctx, "", u.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "disk full")
	assert.Nil(t, stored.Processed)
}
