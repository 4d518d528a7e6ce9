package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/pipeline"
)

type fakeProc struct {
	fields llm.FormFields
	err    error
	got    pipeline.UploadedDocument
	rid    string
}

func (f *fakeProc) Process(ctx context.Context, doc pipeline.UploadedDocument) (llm.FormFields, error) {
	f.got = doc
	f.rid = common.RequestIDFromContext(ctx)
	return f.fields, f.err
}

type fakeExporter struct {
	from, to *time.Time
}

func (f *fakeExporter) JournalXLSX(_ context.Context, from, to *time.Time) ([]byte, error) {
	f.from, f.to = from, to
	return []byte("PK"), nil
}

var sampleFields = llm.FormFields{
	AssessmentYear: "2023-24",
	EmployerName:   "Acme Corp",
	DeductorTAN:    "TAN123",
	EmployeeName:   "Jane Doe",
	EmployeePAN:    "PAN456",
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, proc Processor, path, field, filename, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, contentType, []byte("payload"))
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	NewRouter(proc, nil, HTTPConfig{MaxUploadBytes: 1 << 20}, nil).ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestUpload_PDFRouteSuccess(t *testing.T) {
	proc := &fakeProc{fields: sampleFields}
	rec := doUpload(t, proc, "/upload", "pdfFile", "form16.pdf", "application/pdf")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "2023-24", body["assessmentYear"])
	assert.Equal(t, "PAN456", body["employeePAN"])

	assert.Equal(t, constants.PDF, proc.got.Kind)
	assert.Equal(t, "form16.pdf", proc.got.Filename)
	assert.Equal(t, "application/pdf", proc.got.MIMEType)
	assert.Equal(t, "payload", string(proc.got.Content))
	assert.NotEmpty(t, proc.rid)
	assert.Equal(t, proc.rid, rec.Header().Get(headerRequestID))
}

func TestUpload_ImageRouteNotRecognized(t *testing.T) {
	proc := &fakeProc{err: &common.ParseError{Found: 1}}
	rec := doUpload(t, proc, "/askAboutImages", "image", "scan.png", "image/png")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The image is not a form-16", decodeBody(t, rec)["error"])
	assert.Equal(t, constants.IMAGE, proc.got.Kind)
}

func TestUpload_FailuresAreGeneric(t *testing.T) {
	proc := &fakeProc{err: &common.CompletionError{Reason: common.ReasonAuth, StatusCode: 401, Cause: errors.New("sk-secret rejected")}}
	rec := doUpload(t, proc, "/upload", "pdfFile", "form16.pdf", "application/pdf")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing PDF", decodeBody(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "sk-secret")
}

func TestUpload_UnsupportedType(t *testing.T) {
	proc := &fakeProc{err: common.NewAppError(common.CodeUnsupportedType, "unsupported upload", common.ErrUnsupportedType)}
	rec := doUpload(t, proc, "/api/v1/extract", "file", "notes.txt", "text/plain")

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "unsupported upload", decodeBody(t, rec)["error"])
	assert.Equal(t, constants.InputKind(""), proc.got.Kind)
}

func TestUpload_MissingField(t *testing.T) {
	proc := &fakeProc{fields: sampleFields}
	rec := doUpload(t, proc, "/upload", "wrongField", "form16.pdf", "application/pdf")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "pdfFile")
	assert.Nil(t, proc.got.Content)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&fakeProc{}, nil, HTTPConfig{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

type downChecker struct{}

func (downChecker) HealthCheck(context.Context, time.Duration) error {
	return errors.New("dial tcp: connection refused")
}

func TestHealth_Degraded(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&fakeProc{}, nil, HTTPConfig{Health: downChecker{}}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	rec := preflight(NewRouter(&fakeProc{}, nil, HTTPConfig{CORSOrigin: "*"}, nil), "https://app.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORS_RestrictedOrigin(t *testing.T) {
	r := NewRouter(&fakeProc{}, nil, HTTPConfig{CORSOrigin: "https://app.test"}, nil)

	rec := preflight(r, "https://app.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(r, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpload_TooLarge(t *testing.T) {
	proc := &fakeProc{fields: sampleFields}
	body, ct := multipartBody(t, "pdfFile", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	NewRouter(proc, nil, HTTPConfig{MaxUploadBytes: 1024}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "file exceeds 1024 bytes", decodeBody(t, rec)["error"])
	assert.Nil(t, proc.got.Content)
}

func TestRateLimit(t *testing.T) {
	proc := &fakeProc{fields: sampleFields}
	r := NewRouter(proc, nil, HTTPConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}, nil)

	send := func() int {
		body, ct := multipartBody(t, "file", "a.pdf", "application/pdf", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestExportJournal(t *testing.T) {
	exp := &fakeExporter{}
	r := NewRouter(&fakeProc{}, exp, HTTPConfig{}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/journal/export?from=2024-04-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK", rec.Body.String())
	require.NotNil(t, exp.from)
	assert.Equal(t, "2024-04-01", exp.from.Format(time.DateOnly))
	assert.Nil(t, exp.to)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/journal/export?to=April", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
