package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KaramelBytes/sheetlens/internal/metrics"
	"github.com/KaramelBytes/sheetlens/internal/service"
	"github.com/KaramelBytes/sheetlens/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scoresCSV = "name,score,team\na,10,red\nb,x,red\nc,20,blue\n"

type testServer struct {
	handler http.Handler
	metrics *metrics.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := metrics.New()
	cfg := service.DefaultConfig()
	cfg.MaxUploadBytes = 4 << 10
	svc := service.New(store.NewMemory(), store.NewMemoryBlobs(), m, nil, cfg)
	return &testServer{handler: New(svc, m, nil, Options{ChartWidth: 640, ChartHeight: 360}).Routes(), metrics: m}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, owner, name, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	return ts.do(t, req)
}

func jsonRequest(method, path, owner string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return e["error_code"].(string)
}

func TestUploadAndFetch(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.upload(t, "alice", "scores.csv", scoresCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	id, _ := body["fileId"].(string)
	require.NotEmpty(t, id)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"name", "score", "team"}, data["headers"])
	assert.Equal(t, 3.0, data["rowCount"])

	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/"+id, "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	file := decodeBody(t, rec)["file"].(map[string]any)
	assert.Equal(t, "processed", file["status"])
	summary := file["processedData"].(map[string]any)["summary"].(map[string]any)
	score := summary["score"].(map[string]any)
	assert.Equal(t, "numeric", score["type"])
	assert.Equal(t, 2.0, score["count"])
	assert.Equal(t, 15.0, score["mean"])
	assert.Equal(t, 1.0, score["nullCount"])

	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/"+id, "bob", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/history", "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	files := decodeBody(t, rec)["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "scores.csv", files[0].(map[string]any)["originalName"])
}

func TestUploadErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.upload(t, "", "notes.pdf", "%PDF")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", errorCode(t, rec))

	rec = ts.upload(t, "", "big.csv", strings.Repeat("a,b\n", 2000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = ts.upload(t, "", "broken.xlsx", "not a zip")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.NotEmpty(t, details["fileId"], "the failed upload stays on record")

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChartsForStoredFile(t *testing.T) {
	ts := newTestServer(t)
	id := decodeBody(t, ts.upload(t, "alice", "scores.csv", scoresCSV))["fileId"].(string)

	rec := ts.do(t, jsonRequest(http.MethodPost, "/api/files/"+id+"/charts", "alice",
		map[string]string{"xAxis": "team", "yAxis": "score", "chartType": "line"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decodeBody(t, rec)["analysis"].(map[string]any)
	series := a["chartData"].(map[string]any)
	assert.Equal(t, []any{"red", "blue"}, series["labels"])
	assert.Equal(t, []any{10.0, 20.0}, series["values"])
	assert.Equal(t, "line", series["chart"])

	rec = ts.do(t, jsonRequest(http.MethodPost, "/api/files/"+id+"/charts", "alice",
		map[string]string{"xAxis": "team", "yAxis": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))

	rec = ts.do(t, jsonRequest(http.MethodPost, "/api/files/"+id+"/charts", "alice",
		map[string]string{"xAxis": "team", "yAxis": "score", "chartType": "radar"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/"+id+"/charts", "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["charts"].([]any), 1)

	rec = ts.do(t, jsonRequest(http.MethodPost, "/api/files/"+id+"/reprocess", "alice", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/"+id+"/report?format=html", "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")
	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/"+id+"/report", "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "[SCHEMA]")

	rec = ts.do(t, jsonRequest(http.MethodDelete, "/api/files/"+id, "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/files/"+id, "alice", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeResubmittedData(t *testing.T) {
	ts := newTestServer(t)
	payload := map[string]any{
		"data": []map[string]any{
			{"k": "A", "v": "10"},
			{"k": "A", "v": 30},
			{"k": "B", "v": "20"},
		},
		"xAxis": "k",
		"yAxis": "v",
	}
	rec := ts.do(t, jsonRequest(http.MethodPost, "/api/analyze", "", payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decodeBody(t, rec)["analysis"].(map[string]any)
	series := a["chartData"].(map[string]any)
	assert.Equal(t, []any{"A", "B"}, series["labels"])
	assert.Equal(t, []any{20.0, 20.0}, series["values"])
	summary := a["summary"].(map[string]any)
	assert.Equal(t, 3.0, summary["totalRecords"])
	assert.Equal(t, 2.0, summary["xAxisValues"])

	rec = ts.do(t, jsonRequest(http.MethodPost, "/api/analyze", "", map[string]any{"data": []any{}, "xAxis": "k"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	fields := body["error"].(map[string]any)["details"].([]any)
	assert.Equal(t, "yAxis", fields[0].(map[string]any)["field"])

	rec = ts.do(t, jsonRequest(http.MethodGet, "/api/analysis/history", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var hist []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Analyses.WithLabelValues("bar")))
}

func TestRenderChart(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, jsonRequest(http.MethodPost, "/api/charts/render?format=svg", "",
		map[string]any{"chart": "bar", "labels": []string{"A", "B"}, "values": []float64{20, 20}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = ts.do(t, jsonRequest(http.MethodPost, "/api/charts/render", "",
		map[string]any{"labels": []string{}, "values": []float64{}}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_SERIES", errorCode(t, rec))

	rec = ts.do(t, jsonRequest(http.MethodPost, "/api/charts/render", "",
		map[string]any{"labels": []string{"A"}, "values": []float64{1, 2}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sheetlens_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
