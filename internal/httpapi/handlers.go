package httpapi

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/aggregate"
	"github.com/KaramelBytes/sheetlens/internal/chart"
	"github.com/KaramelBytes/sheetlens/internal/service"
	"github.com/KaramelBytes/sheetlens/internal/store"
	"github.com/KaramelBytes/sheetlens/internal/table"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

type tableShape struct {
	Headers     []string `json:"headers"`
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
}

type uploadResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	FileID  string     `json:"fileId"`
	Data    tableShape `json:"data"`
}

// historyItem is the list view of an upload.
type historyItem struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	OriginalName string       `json:"originalName"`
	Size         int64        `json:"size"`
	UploadDate   time.Time    `json:"uploadDate"`
	Status       store.Status `json:"status"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := fromError(err)
	if e.StatusCode >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	writeError(w, r, e)
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	limit := s.svc.Config().MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.fail(w, r, service.ErrFileTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, r, validationFailed(ValidationError{Field: "file", Message: "No file uploaded"}))
		default:
			writeError(w, r, newError(http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", err.Error()))
		}
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.svc.Upload(r.Context(), service.UploadInput{
		Owner:    ownerOf(r),
		Name:     hdr.Filename,
		MimeType: hdr.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		e := fromError(err)
		if u != nil {
			e.Details = map[string]string{"fileId": u.ID}
		}
		writeError(w, r, e)
		return
	}
	render.JSON(w, r, uploadResponse{
		Success: true,
		Message: "File uploaded and processed successfully",
		FileID:  u.ID,
		Data: tableShape{
			Headers:     u.Processed.Headers,
			RowCount:    u.Processed.RowCount,
			ColumnCount: u.Processed.ColumnCount,
		},
	})
}

func (s *Server) uploadHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.History(r.Context(), ownerOf(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	files := make([]historyItem, 0, len(list))
	for _, u := range list {
		files = append(files, historyItem{
			ID:           u.ID,
			Filename:     u.BlobKey,
			OriginalName: u.OriginalName,
			Size:         u.Size,
			UploadDate:   u.UploadedAt,
			Status:       u.Status,
		})
	}
	render.JSON(w, r, map[string]any{"success": true, "files": files})
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Get(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "file": u})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), ownerOf(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "message": "File deleted successfully"})
}

func (s *Server) reprocessFile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Reprocess(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "file": u})
}

func (s *Server) fileReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "md" && format != "html" {
		writeError(w, r, validationFailed(ValidationError{Field: "format", Message: "format must be one of: md, html"}))
		return
	}
	rep, err := s.svc.Report(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if format == "html" {
		render.HTML(w, r, string(rep.HTML()))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, rep.Markdown())
}

// chartRequest selects the axis pair for a stored file.
type chartRequest struct {
	XAxis     string `json:"xAxis" validate:"required"`
	YAxis     string `json:"yAxis" validate:"required"`
	ChartType string `json:"chartType" validate:"omitempty,oneof=bar line pie"`
	Reduction string `json:"reduction" validate:"omitempty,oneof=mean sum count"`
}

func (c chartRequest) request() aggregate.Request {
	// both already validated
	kind, _ := aggregate.ParseChartKind(c.ChartType)
	red, _ := aggregate.ParseReduction(c.Reduction)
	return aggregate.Request{Key: c.XAxis, Value: c.YAxis, Chart: kind, Reduction: red}
}

// analyzeRequest carries a resubmitted row set.
type analyzeRequest struct {
	Data []table.Record `json:"data" validate:"required"`
	chartRequest
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		writeError(w, r, newError(http.StatusBadRequest, "INVALID_JSON", "Request body contains invalid JSON", err.Error()))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, r, fromValidator(err))
		return false
	}
	return true
}

func (s *Server) generateChart(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.svc.GenerateChart(r.Context(), ownerOf(r), chi.URLParam(r, "id"), req.request())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "analysis": a})
}

func (s *Server) listCharts(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Analyses(r.Context(), ownerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "charts": nonNil(list)})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.svc.Analyze(r.Context(), ownerOf(r), req.Data, req.request())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"success": true, "analysis": a})
}

func (s *Server) analysisHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Analyses(r.Context(), ownerOf(r), "")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, nonNil(list))
}

func nonNil(list []*store.Analysis) []*store.Analysis {
	if list == nil {
		return []*store.Analysis{}
	}
	return list
}

// renderRequest is a series to draw.
type renderRequest struct {
	Title  string    `json:"title"`
	Chart  string    `json:"chart" validate:"omitempty,oneof=bar line pie"`
	Labels []string  `json:"labels" validate:"required"`
	Values []float64 `json:"values" validate:"required"`
}

func (s *Server) renderChart(w http.ResponseWriter, r *http.Request) {
	format, err := chart.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, validationFailed(ValidationError{Field: "format", Message: err.Error()}))
		return
	}
	var req renderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Labels) != len(req.Values) {
		writeError(w, r, validationFailed(ValidationError{Field: "values", Message: "values must have as many entries as labels"}))
		return
	}
	kind, _ := aggregate.ParseChartKind(req.Chart)
	series := aggregate.Series{Name: req.Title, Chart: kind, Labels: req.Labels, Values: req.Values}

	var buf bytes.Buffer
	err = chart.Render(&buf, series, chart.Options{
		Width:  s.opt.ChartWidth,
		Height: s.opt.ChartHeight,
		Format: format,
		Title:  req.Title,
	})
	if err != nil {
		if errors.Is(err, chart.ErrEmptySeries) {
			s.fail(w, r, err)
			return
		}
		writeError(w, r, newError(http.StatusUnprocessableEntity, "RENDER_FAILED", err.Error(), nil))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write(buf.Bytes())
}
