package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconsolidator/internal/assembler"
	"github.com/local/pdfconsolidator/internal/classifier"
	"github.com/local/pdfconsolidator/internal/merge"
	"github.com/local/pdfconsolidator/internal/pdfops"
	"github.com/local/pdfconsolidator/internal/statuscheck"
	"github.com/local/pdfconsolidator/internal/storage"
	"github.com/local/pdfconsolidator/internal/store"
	"github.com/local/pdfconsolidator/internal/strategy"
)

type upload struct {
	name string
	data []byte
}

func synth(pages int) []byte {
	specs := make([]pdfops.PageSpec, pages)
	for i := range specs {
		specs[i] = pdfops.PageSpec{Size: pdfops.Letter, Title: "Filing", Lines: []string{"body"}}
	}
	return pdfops.MustCompose(specs)
}

func newTestServer(t *testing.T, disabled ...strategy.Name) (*Server, *store.MemoryRecords) {
	t.Helper()
	cls := classifier.New(nil)
	chain := strategy.NewChain(strategy.NewSet(strategy.Env{}), cls, nil)
	chain.Disabled = map[strategy.Name]bool{}
	for _, n := range disabled {
		chain.Disabled[n] = true
	}
	orch := merge.New(merge.Dependencies{Classifier: cls, Chain: chain, Assembler: assembler.New(assembler.Options{}), MaxConcurrent: 2})
	bundles, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	records := store.NewMemoryRecords()
	return New(Dependencies{
		Merger:        orch,
		Bundles:       bundles,
		Records:       records,
		MaxFiles:      3,
		PublicBaseURL: "http://bundles.test",
	}), records
}

func multipartRequest(t *testing.T, caseNumber string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if caseNumber != "" {
		require.NoError(t, mw.WriteField("case_number", caseNumber))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(documentsField, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/cases/merge", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMergeEndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartRequest(t, "C-100", upload{"complaint.pdf", synth(2)}, upload{"answer.pdf", synth(3)}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp mergeResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 6, resp.TotalPages) // 2 + separator + 3
	assert.Equal(t, 2, resp.DocumentCount)
	assert.Equal(t, "http://bundles.test/api/documents/"+resp.DocumentID, resp.URL)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "answer.pdf", resp.Documents[1].Name)
	assert.Equal(t, "DirectLoad", resp.Documents[1].Method)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/documents/"+resp.DocumentID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	n, err := pdfops.PageCount(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/documents/"+resp.DocumentID+"/manifest", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var rec store.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "C-100", rec.CaseNumber)
	require.Len(t, rec.Documents, 2)
	assert.NotEmpty(t, rec.Documents[0].Attempts)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/cases/C-100/bundles", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Bundles []store.Record `json:"bundles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Bundles, 1)
}

func TestMergeValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	cases := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"missing case number", multipartRequest(t, "", upload{"a.pdf", synth(1)}), http.StatusBadRequest},
		{"no files", multipartRequest(t, "C-1"), http.StatusBadRequest},
		{"too many files", multipartRequest(t, "C-1", upload{"a.pdf", synth(1)}, upload{"b.pdf", synth(1)}, upload{"c.pdf", synth(1)}, upload{"d.pdf", synth(1)}), http.StatusBadRequest},
		{"not a pdf", multipartRequest(t, "C-1", upload{"photo.png", png}), http.StatusUnsupportedMediaType},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/cases/merge", bytes.NewBufferString("{}")), http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/cases/merge", nil), http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, tc.req)
			assert.Equal(t, tc.code, rr.Code, rr.Body.String())
		})
	}
}

func TestMergeUnrecoverableDocumentReturnsRemediation(t *testing.T) {
	srv, records := newTestServer(t, strategy.FullReconstruction)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, multipartRequest(t, "C-7", upload{"fine.pdf", synth(1)}, upload{"lost.pdf", []byte("nothing recognisable here")}))
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	var resp errorResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "CorruptedPdf", resp.ErrorKind)
	assert.Equal(t, "lost.pdf", resp.Document)
	assert.Contains(t, resp.Message, "Print > Save as PDF")
	assert.NotContains(t, rr.Body.String(), "goroutine")

	// nothing is persisted for a failed batch
	list, err := records.ListByCase(context.Background(), "C-7")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDocumentNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	for _, p := range []string{"/api/documents/unknown", "/api/documents/unknown/manifest", "/api/documents/", "/api/documents/x/other"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, p)
	}
}

type fixedStatus statuscheck.Summary

func (f fixedStatus) Summary(context.Context) statuscheck.Summary { return statuscheck.Summary(f) }

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	ok := statuscheck.Status{OK: true, Message: "ok"}
	srv.deps.Status = fixedStatus{Storage: ok, QPDF: ok, Ghostscript: ok, MuPDF: ok}
	h := srv.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	assert.Equal(t, "ok", string(body))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	srv.deps.Status = fixedStatus{Storage: ok}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "a.pdf", displayName(`C:\Users\x\a.pdf`, 0))
	assert.Equal(t, "b.pdf", displayName("../../b.pdf", 0))
	assert.Equal(t, "document-3.pdf", displayName("", 2))
}
