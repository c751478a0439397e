package server

import (
    "context"
    "errors"
    "fmt"
    "io"
    "mime/multipart"
    "net/http"
    "path/filepath"
    "strings"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfconsolidator/internal/document"
    "github.com/local/pdfconsolidator/internal/merge"
    "github.com/local/pdfconsolidator/internal/storage"
    "github.com/local/pdfconsolidator/internal/store"
)

const documentsField = "documents"

type docSummary struct {
    Name         string `json:"name"`
    Method       string `json:"method"`
    Pages        int    `json:"pages"`
    Placeholders int    `json:"placeholders"`
}

type mergeResp struct {
    Success       bool         `json:"success"`
    DocumentID    string       `json:"documentId"`
    URL           string       `json:"url"`
    TotalPages    int          `json:"totalPages"`
    DocumentCount int          `json:"documentCount"`
    Documents     []docSummary `json:"documents"`
}

type errorResp struct {
    Success   bool   `json:"success"`
    ErrorKind string `json:"errorKind,omitempty"`
    Message   string `json:"message"`
    Document  string `json:"document,omitempty"`
}

func fail(w http.ResponseWriter, code int, msg string) {
    writeJSON(w, code, errorResp{Success: false, Message: msg})
}

// handleMerge accepts multipart uploads: field "documents" (repeated) and "case_number".
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    r.Body = http.MaxBytesReader(w, r.Body, int64(s.deps.MaxFiles)*s.deps.MaxFileBytes+(1<<20))
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        var mbe *http.MaxBytesError
        if errors.As(err, &mbe) { fail(w, http.StatusRequestEntityTooLarge, "upload too large"); return }
        fail(w, http.StatusBadRequest, "invalid multipart form"); return
    }
    defer r.MultipartForm.RemoveAll()

    caseNumber := strings.TrimSpace(r.FormValue("case_number"))
    if caseNumber == "" { fail(w, http.StatusBadRequest, "missing case_number"); return }
    files := r.MultipartForm.File[documentsField]
    if len(files) == 0 { fail(w, http.StatusBadRequest, "no documents uploaded"); return }
    if len(files) > s.deps.MaxFiles {
        fail(w, http.StatusBadRequest, fmt.Sprintf("at most %d documents per merge", s.deps.MaxFiles)); return
    }

    docs := make([]document.InputDocument, 0, len(files))
    for i, hdr := range files {
        name := displayName(hdr.Filename, i)
        if hdr.Size > s.deps.MaxFileBytes {
            fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("%q exceeds the %d MB limit", name, s.deps.MaxFileBytes>>20)); return
        }
        data, err := readPart(hdr)
        if err != nil { fail(w, http.StatusBadRequest, fmt.Sprintf("cannot read %q", name)); return }
        if info := s.deps.Detector.Detect(data, name); !info.Supported {
            writeJSON(w, http.StatusUnsupportedMediaType, errorResp{Message: info.Description, Document: name}); return
        }
        docs = append(docs, document.InputDocument{Bytes: data, DisplayName: name, Ordinal: i})
    }

    lg := log.With().Str("case_number", caseNumber).Int("documents", len(docs)).Logger()
    out, err := s.deps.Merger.Merge(r.Context(), docs)
    if err != nil {
        s.writeMergeError(w, r, err)
        return
    }

    id := uuid.NewString()
    key, err := s.deps.Bundles.Put(r.Context(), id, out.Bytes, storage.Meta{
        Name:       caseNumber + "-bundle.pdf",
        CaseNumber: caseNumber,
        Pages:      out.TotalPages,
    })
    if err != nil {
        lg.Error().Err(err).Msg("failed to persist bundle")
        fail(w, http.StatusInternalServerError, "failed to store the merged document"); return
    }
    rec := store.NewRecord(id, caseNumber, key, out, s.deps.Now())
    if err := s.deps.Records.Save(r.Context(), rec); err != nil {
        lg.Error().Err(err).Str("document_id", id).Msg("failed to save case record")
        fail(w, http.StatusInternalServerError, "failed to record the merged document"); return
    }

    resp := mergeResp{
        Success:       true,
        DocumentID:    id,
        URL:           s.deps.PublicBaseURL + "/api/documents/" + id,
        TotalPages:    out.TotalPages,
        DocumentCount: out.DocumentCount,
    }
    for _, d := range out.Documents {
        resp.Documents = append(resp.Documents, docSummary{Name: d.DisplayName, Method: d.Method, Pages: d.PageCount, Placeholders: d.PlaceholderPages})
    }
    lg.Info().Str("document_id", id).Int("pages", out.TotalPages).Msg("merged case bundle")
    writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) writeMergeError(w http.ResponseWriter, r *http.Request, err error) {
    if be, ok := document.AsBatchError(err); ok {
        code := http.StatusInternalServerError
        switch be.Kind {
        case document.ErrEncryptedPdf, document.ErrCorruptedPdf, document.ErrIncompatiblePdf:
            code = http.StatusConflict
        }
        log.Warn().Str("kind", string(be.Kind)).Str("doc", be.Document).Msg("merge rejected")
        writeJSON(w, code, errorResp{ErrorKind: string(be.Kind), Message: be.Message, Document: be.Document})
        return
    }
    if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
        log.Info().Msg("merge abandoned by client")
        fail(w, http.StatusServiceUnavailable, "request cancelled")
        return
    }
    if errors.Is(err, merge.ErrEmptyBatch) {
        fail(w, http.StatusBadRequest, "no documents uploaded")
        return
    }
    log.Error().Err(err).Msg("merge failed")
    fail(w, http.StatusInternalServerError, "the documents could not be merged")
}

// handleDocument serves /api/documents/{id} and /api/documents/{id}/manifest.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
    id, sub, _ := strings.Cut(rest, "/")
    if id == "" { http.NotFound(w, r); return }

    switch sub {
    case "manifest":
        rec, err := s.deps.Records.Get(r.Context(), id)
        if errors.Is(err, store.ErrNotFound) { fail(w, http.StatusNotFound, "not found"); return }
        if err != nil { fail(w, http.StatusInternalServerError, "error"); return }
        writeJSON(w, http.StatusOK, rec)
    case "":
        data, meta, err := s.deps.Bundles.Get(r.Context(), id)
        if errors.Is(err, storage.ErrNotFound) { fail(w, http.StatusNotFound, "not found"); return }
        if err != nil {
            log.Error().Err(err).Str("document_id", id).Msg("failed to read bundle")
            fail(w, http.StatusInternalServerError, "failed to read"); return
        }
        name := meta.Name
        if name == "" { name = id + ".pdf" }
        w.Header().Set("Content-Type", "application/pdf")
        w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
        _, _ = w.Write(data)
    default:
        http.NotFound(w, r)
    }
}

// handleCaseBundles serves /api/cases/{case}/bundles.
func (s *Server) handleCaseBundles(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    rest := strings.TrimPrefix(r.URL.Path, "/api/cases/")
    caseNumber, sub, _ := strings.Cut(rest, "/")
    if caseNumber == "" || sub != "bundles" { http.NotFound(w, r); return }
    recs, err := s.deps.Records.ListByCase(r.Context(), caseNumber)
    if err != nil { fail(w, http.StatusInternalServerError, "error"); return }
    if recs == nil { recs = []store.Record{} }
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "caseNumber": caseNumber, "bundles": recs})
}

func displayName(filename string, i int) string {
    name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
    if name == "" || name == "." || name == "/" {
        return fmt.Sprintf("document-%d.pdf", i+1)
    }
    return name
}

func readPart(hdr *multipart.FileHeader) ([]byte, error) {
    f, err := hdr.Open()
    if err != nil { return nil, err }
    defer f.Close()
    return io.ReadAll(f)
}
