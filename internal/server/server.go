// Package server is the HTTP boundary of the recovery engine: uploads in,
// consolidated bundles and their manifests out.
package server

import (
    "context"
    "encoding/json"
    "net/http"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfconsolidator/internal/document"
    "github.com/local/pdfconsolidator/internal/filetype"
    "github.com/local/pdfconsolidator/internal/metrics"
    "github.com/local/pdfconsolidator/internal/statuscheck"
    "github.com/local/pdfconsolidator/internal/storage"
    "github.com/local/pdfconsolidator/internal/store"
)

// Merger runs the recovery engine over one batch.
type Merger interface {
    Merge(ctx context.Context, docs []document.InputDocument) (*document.MergedOutput, error)
}

// BundleStore persists merged bytes.
type BundleStore interface {
    Put(ctx context.Context, id string, data []byte, meta storage.Meta) (string, error)
    Get(ctx context.Context, id string) ([]byte, storage.Meta, error)
}

// StatusReporter backs /status.
type StatusReporter interface {
    Summary(ctx context.Context) statuscheck.Summary
}

type Dependencies struct {
    Merger        Merger
    Bundles       BundleStore
    Records       store.Records
    Detector      *filetype.Detector
    Status        StatusReporter
    MaxFiles      int
    MaxFileBytes  int64
    PublicBaseURL string
    Now           func() time.Time
}

type Server struct {
    deps Dependencies
}

func New(deps Dependencies) *Server {
    if deps.Detector == nil { deps.Detector = filetype.New() }
    if deps.MaxFiles <= 0 { deps.MaxFiles = 10 }
    if deps.MaxFileBytes <= 0 { deps.MaxFileBytes = 50 << 20 }
    if deps.Now == nil { deps.Now = time.Now }
    return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _,_ = w.Write([]byte("ok")) })
    mux.HandleFunc("/status", s.handleStatus)
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/api/cases/merge", s.handleMerge)
    mux.HandleFunc("/api/cases/", s.handleCaseBundles)
    mux.HandleFunc("/api/documents/", s.handleDocument)
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()
    s.RegisterRoutes(mux)
    return logRequests(mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
    if s.deps.Status == nil { http.Error(w, "status checks not configured", http.StatusNotFound); return }
    sum := s.deps.Status.Summary(r.Context())
    code := http.StatusOK
    if !sum.Healthy() { code = http.StatusServiceUnavailable }
    writeJSON(w, code, sum)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
    http.ResponseWriter
    code int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.code = code
    r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
        next.ServeHTTP(rec, r)
        if r.URL.Path == "/health" || r.URL.Path == "/metrics" { return }
        log.Info().
            Str("method", r.Method).
            Str("path", r.URL.Path).
            Int("status", rec.code).
            Dur("duration", time.Since(start)).
            Msg("http request")
    })
}
