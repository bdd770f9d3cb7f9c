// Package httpapi exposes the upload, profiling and aggregation service over
// HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/logging"
	"github.com/KaramelBytes/sheetlens/internal/metrics"
	"github.com/KaramelBytes/sheetlens/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// OwnerHeader carries the caller identity supplied by the fronting auth layer.
const OwnerHeader = "X-Owner-ID"

// Options control chart export size.
type Options struct {
	ChartWidth  int
	ChartHeight int
}

// Server holds the handlers' dependencies.
type Server struct {
	svc      *service.Service
	metrics  *metrics.Registry
	log      *slog.Logger
	validate *validator.Validate
	opt      Options
}

// New builds a Server. m and log may be nil.
func New(svc *service.Service, m *metrics.Registry, log *slog.Logger, opt Options) *Server {
	if log == nil {
		log = logging.Discard()
	}
	v := validator.New()
	// report JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		svc:      svc,
		metrics:  m,
		log:      log.With("component", "http"),
		validate: v,
		opt:      opt,
	}
}

// Routes returns the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/files", func(r chi.Router) {
			r.Post("/upload", s.uploadFile)
			r.Get("/history", s.uploadHistory)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getFile)
				r.Delete("/", s.deleteFile)
				r.Post("/reprocess", s.reprocessFile)
				r.Get("/report", s.fileReport)
				r.Post("/charts", s.generateChart)
				r.Get("/charts", s.listCharts)
			})
		})
		r.Post("/analyze", s.analyze)
		r.Get("/analysis/history", s.analysisHistory)
		r.Post("/charts/render", s.renderChart)
	})
	return r
}

// requestLog logs each request and counts it by route pattern.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.Request(r.Method, route, strconv.Itoa(status))
		s.log.InfoContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func ownerOf(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get(OwnerHeader)); o != "" {
		return o
	}
	return service.DefaultOwner
}
