package audittrail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/pkg/platform/audit"
	auditmemory "ledger/pkg/platform/audit/store/memory"
	"ledger/pkg/requestcontext"
)

// =============================================================================
// Audit Trail Middleware Suite
// =============================================================================
// Justification: the middleware owns the request half of the audit log. Tests
// pin what lands in the header and that audit trouble never reaches clients.

type AuditTrailSuite struct {
	suite.Suite
	store  *auditmemory.InMemoryStore
	writer *audit.Writer
	logs   *bytes.Buffer
	logger *slog.Logger
}

func TestAuditTrailSuite(t *testing.T) {
	suite.Run(t, new(AuditTrailSuite))
}

func (s *AuditTrailSuite) SetupTest() {
	s.store = auditmemory.NewInMemoryStore()
	s.writer = audit.NewWriter(s.store)
	s.logs = &bytes.Buffer{}
	s.logger = slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (s *AuditTrailSuite) headers() []audit.Header {
	hs, err := s.store.ListHeaders(context.Background())
	s.Require().NoError(err)
	return hs
}

func (s *AuditTrailSuite) TestWriteIsAudited() {
	var seenHeader int64
	var seenBody string
	h := Middleware(s.writer, WithLogger(s.logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader, _ = requestcontext.AuditHeaderID(r.Context())
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents?draft=true", strings.NewReader(`{"documentNumber":"INV-1"}`))
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	ctx := requestcontext.WithActor(r.Context(), "u-1", "alice")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", r.UserAgent())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r.WithContext(ctx))

	s.Equal(http.StatusCreated, rr.Code)
	s.Equal(`{"documentNumber":"INV-1"}`, seenBody, "handler still reads the body")

	hs := s.headers()
	s.Require().Len(hs, 1)
	hdr := hs[0]
	s.Equal(hdr.ID, seenHeader)
	s.Equal("POST", hdr.Method)
	s.Equal("/api/v1/documents", hdr.Path)
	s.Equal("draft=true", hdr.QueryString)
	s.Equal("203.0.113.7", hdr.IPAddress)
	s.Equal("alice", hdr.UserName)
	s.Equal("u-1", hdr.UserID)
	s.Require().NotNil(hdr.RequestBody)
	s.Equal(`{"documentNumber":"INV-1"}`, *hdr.RequestBody)
	s.Equal(http.StatusCreated, hdr.StatusCode)
	s.True(hdr.IsSuccess)
	s.Require().NotNil(hdr.ResponseBody)
	s.Equal(`{"id":1}`, *hdr.ResponseBody)
	s.Nil(hdr.ErrorMessage)
	s.Contains(s.logs.String(), "client_browser=Chrome")
}

func (s *AuditTrailSuite) TestReadsAreSkippedUnlessEnabled() {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	Middleware(s.writer)(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	s.Empty(s.headers())

	Middleware(s.writer, WithReads(true))(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	s.Len(s.headers(), 1)

	Middleware(s.writer, WithReads(true))(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil))
	s.Len(s.headers(), 1, "OPTIONS is never audited")
}

func (s *AuditTrailSuite) TestOversizedBodyIsReplaced() {
	var seen int
	h := Middleware(s.writer, WithMaxBodyBytes(8))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = len(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/x", strings.NewReader("0123456789abcdef")))

	s.Equal(16, seen)
	hdr := s.headers()[0]
	s.Require().NotNil(hdr.RequestBody)
	s.Equal("[Body too large: 16 bytes]", *hdr.RequestBody)
}

func (s *AuditTrailSuite) TestEmptyBodyIsNil() {
	h := Middleware(s.writer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))
	s.Nil(s.headers()[0].RequestBody)
}

func (s *AuditTrailSuite) TestFailedRequestRecordsError() {
	h := Middleware(s.writer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/x", nil))

	hdr := s.headers()[0]
	s.Equal(http.StatusConflict, hdr.StatusCode)
	s.False(hdr.IsSuccess)
	s.Require().NotNil(hdr.ErrorMessage)
	s.Equal("Conflict", *hdr.ErrorMessage)
}

func (s *AuditTrailSuite) TestPanicIsRecordedAndRethrown() {
	h := Middleware(s.writer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	s.PanicsWithValue("boom", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	})

	hdr := s.headers()[0]
	s.Equal(http.StatusInternalServerError, hdr.StatusCode)
	s.False(hdr.IsSuccess)
	s.Require().NotNil(hdr.ErrorMessage)
	s.Equal("boom", *hdr.ErrorMessage)
	s.Require().NotNil(hdr.ExceptionDetails)
	s.Contains(*hdr.ExceptionDetails, "goroutine")
}

type failingRecorder struct{}

func (failingRecorder) Begin(context.Context, audit.Header) (int64, error) {
	return 0, errors.New("audit db down")
}

func (failingRecorder) Complete(context.Context, int64, audit.Outcome) error {
	return errors.New("audit db down")
}

func TestBeginFailureDoesNotBlockRequest(t *testing.T) {
	logs := &bytes.Buffer{}
	called := false
	h := Middleware(failingRecorder{}, WithLogger(slog.New(slog.NewTextHandler(logs, nil))))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			_, ok := requestcontext.AuditHeaderID(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}")))
	require.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, logs.String(), "failed to begin audit header")
}
