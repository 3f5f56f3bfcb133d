package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/pkg/requestcontext"
)

func serve(t *testing.T, inbound string) (ctxID string, rr *httptest.ResponseRecorder) {
	t.Helper()
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = requestcontext.RequestID(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		r.Header.Set(Header, inbound)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return ctxID, rr
}

func TestMiddleware(t *testing.T) {
	t.Run("keeps a caller supplied id", func(t *testing.T) {
		id, rr := serve(t, "trace-123")
		assert.Equal(t, "trace-123", id)
		assert.Equal(t, "trace-123", rr.Header().Get(Header))
	})

	t.Run("mints an id when absent", func(t *testing.T) {
		id, rr := serve(t, "")
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, rr.Header().Get(Header))
	})

	t.Run("replaces a hostile id", func(t *testing.T) {
		id, _ := serve(t, "bad id\nwith newline")
		assert.NotContains(t, id, " ")
	})
}
