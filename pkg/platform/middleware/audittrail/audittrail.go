// Package audittrail records one audit header per API request. The header is
// opened before the handler runs, so writes made while serving the request
// can attach their field changes to it, and completed with the response
// outcome afterwards. Audit failures are logged and never change the
// response.
package audittrail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/mssola/useragent"

	"ledger/pkg/platform/audit"
	"ledger/pkg/requestcontext"
)

// DefaultMaxBodyBytes caps captured request and response bodies.
const DefaultMaxBodyBytes int64 = 10 << 20

// Recorder persists audit headers.
type Recorder interface {
	Begin(ctx context.Context, draft audit.Header) (int64, error)
	Complete(ctx context.Context, id int64, outcome audit.Outcome) error
}

type config struct {
	auditReads   bool
	maxBodyBytes int64
	logger       *slog.Logger
}

// Option configures the middleware.
type Option func(*config)

// WithReads audits GET and HEAD requests as well as writes.
func WithReads(enabled bool) Option {
	return func(c *config) {
		c.auditReads = enabled
	}
}

// WithMaxBodyBytes sets the capture cap. Larger bodies are replaced with a
// placeholder in the header.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger for swallowed audit failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Middleware wraps handlers with audit header bookkeeping. It expects the
// request id, client metadata, request time and actor to be on the context
// already.
func Middleware(rec Recorder, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{maxBodyBytes: DefaultMaxBodyBytes, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.audited(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			start := time.Now()
			draft := audit.Header{
				Timestamp:   requestcontext.Now(ctx).UTC(),
				Method:      r.Method,
				Endpoint:    r.Method + " " + r.URL.Path,
				Path:        r.URL.Path,
				QueryString: r.URL.RawQuery,
				IPAddress:   requestcontext.ClientIP(ctx),
				UserAgent:   r.UserAgent(),
				UserID:      requestcontext.UserID(ctx),
				UserName:    requestcontext.UserName(ctx),
				RequestBody: captureRequestBody(r, cfg.maxBodyBytes),
			}

			headerID, err := rec.Begin(ctx, draft)
			if err != nil {
				cfg.logger.ErrorContext(ctx, "failed to begin audit header",
					"request_id", requestcontext.RequestID(ctx),
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			ctx = requestcontext.WithAuditHeaderID(ctx, headerID)

			capture := &responseCapture{limit: cfg.maxBodyBytes}
			sw := capture.wrap(w)

			defer func() {
				outcome := audit.Outcome{
					StatusCode:   capture.statusOrOK(),
					Elapsed:      time.Since(start),
					ResponseBody: capture.body(),
				}
				panicked := recover()
				if panicked != nil {
					if !capture.wroteHeader {
						outcome.StatusCode = http.StatusInternalServerError
					}
					msg := fmt.Sprint(panicked)
					stack := string(debug.Stack())
					outcome.ErrorMessage = &msg
					outcome.ExceptionDetails = &stack
				} else if !audit.IsSuccess(outcome.StatusCode) {
					msg := http.StatusText(outcome.StatusCode)
					outcome.ErrorMessage = &msg
				}

				cfg.complete(context.WithoutCancel(ctx), rec, r, headerID, outcome)
				if panicked != nil {
					panic(panicked)
				}
			}()

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

func (c config) audited(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	case http.MethodGet, http.MethodHead:
		return c.auditReads
	default:
		return false
	}
}

func (c config) complete(ctx context.Context, rec Recorder, r *http.Request, headerID int64, outcome audit.Outcome) {
	ua := useragent.New(r.UserAgent())
	browser, _ := ua.Browser()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"header_id", headerID,
		"status", outcome.StatusCode,
		"elapsed_ms", outcome.Elapsed.Milliseconds(),
		"client_browser", browser,
		"client_os", ua.OS(),
		"client_bot", ua.Bot(),
	}
	if err := rec.Complete(ctx, headerID, outcome); err != nil {
		c.logger.ErrorContext(ctx, "failed to complete audit header", append(attrs, "error", err)...)
		return
	}
	c.logger.DebugContext(ctx, "request audited", attrs...)
}

// captureRequestBody reads the body for the audit header and restores it for
// the handler. It returns nil for OPTIONS and empty bodies.
func captureRequestBody(r *http.Request, limit int64) *string {
	if r.Method == http.MethodOptions || r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	if r.ContentLength > limit {
		s := fmt.Sprintf("[Body too large: %d bytes]", r.ContentLength)
		return &s
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil {
		s := fmt.Sprintf("[Error reading body: %v]", err)
		return &s
	}
	if int64(len(buf)) > limit {
		s := fmt.Sprintf("[Body too large: more than %d bytes]", limit)
		return &s
	}
	if len(buf) == 0 {
		return nil
	}
	s := string(buf)
	return &s
}

type readCloser struct {
	io.Reader
	io.Closer
}

// responseCapture observes the status code and the first limit bytes of the
// response body without changing what the client receives.
type responseCapture struct {
	limit       int64
	status      int
	wroteHeader bool
	buf         bytes.Buffer
	truncated   bool
}

func (c *responseCapture) wrap(w http.ResponseWriter) http.ResponseWriter {
	return httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				if !c.wroteHeader {
					c.status = code
					c.wroteHeader = true
				}
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				if !c.wroteHeader {
					c.status = http.StatusOK
					c.wroteHeader = true
				}
				c.record(b)
				return next(b)
			}
		},
	})
}

func (c *responseCapture) record(b []byte) {
	room := c.limit - int64(c.buf.Len())
	if room <= 0 {
		c.truncated = c.truncated || len(b) > 0
		return
	}
	if int64(len(b)) > room {
		c.truncated = true
		b = b[:room]
	}
	c.buf.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if !c.wroteHeader {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) body() *string {
	if c.truncated {
		s := fmt.Sprintf("[Body too large: more than %d bytes]", c.limit)
		return &s
	}
	if c.buf.Len() == 0 {
		return nil
	}
	s := c.buf.String()
	return &s
}
