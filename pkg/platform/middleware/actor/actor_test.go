package actor

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"ledger/pkg/requestcontext"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (v stubValidator) ValidateToken(string) (*Claims, error) {
	return v.claims, v.err
}

type ActorSuite struct {
	suite.Suite
	seenID   string
	seenName string
	called   bool
}

func TestActorSuite(t *testing.T) {
	suite.Run(t, new(ActorSuite))
}

func (s *ActorSuite) SetupTest() {
	s.seenID, s.seenName, s.called = "", "", false
}

func (s *ActorSuite) serve(v JWTValidator, authorization string) *httptest.ResponseRecorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Resolve(v, logger)(Reject(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		s.called = true
		s.seenID = requestcontext.UserID(r.Context())
		s.seenName = requestcontext.UserName(r.Context())
	})))
	r := httptest.NewRequest(http.MethodPatch, "/api/v1/documents/1", nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func (s *ActorSuite) TestValidTokenSetsActor() {
	rr := s.serve(stubValidator{claims: &Claims{UserID: "u-1", UserName: "alice"}}, "Bearer abc")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("u-1", s.seenID)
	s.Equal("alice", s.seenName)
}

func (s *ActorSuite) TestMissingTokenIsAnonymous() {
	s.serve(stubValidator{err: errors.New("unused")}, "")
	s.True(s.called)
	s.Equal(requestcontext.AnonymousUser, s.seenName)
}

func (s *ActorSuite) TestInvalidTokenIsRejected() {
	rr := s.serve(stubValidator{err: errors.New("bad signature")}, "Bearer abc")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.False(s.called)
	s.Contains(rr.Body.String(), `"error":"unauthorized"`)
}

func (s *ActorSuite) TestUnsupportedSchemeIsRejected() {
	rr := s.serve(stubValidator{}, "Basic dXNlcjpwYXNz")
	s.Equal(http.StatusUnauthorized, rr.Code)
	s.False(s.called)
}

func TestNilValidatorTreatsEveryoneAsAnonymous(t *testing.T) {
	var name string
	h := Resolve(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		name = requestcontext.UserName(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer whatever")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, requestcontext.AnonymousUser, name)
}

func TestResolveDefersRejection(t *testing.T) {
	var reason string
	var refused bool
	var name string
	h := Resolve(stubValidator{err: errors.New("expired")}, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason, refused = Rejection(r.Context())
			name = requestcontext.UserName(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	assert.Equal(t, http.StatusTeapot, rr.Code, "middleware between Resolve and Reject still runs")
	assert.True(t, refused)
	assert.Equal(t, "Invalid or expired token", reason)
	assert.Equal(t, requestcontext.AnonymousUser, name)
}
