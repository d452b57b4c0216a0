package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"myGreenStorefront/business/personalization"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header map[string]string) (*httptest.ResponseRecorder, string, string) {
	t.Helper()

	var gotSession, gotTrace string
	h := SessionMiddleware()(func(c echo.Context) error {
		gotSession = SessionID(c)
		gotTrace = personalization.TraceIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()

	require.NoError(t, h(e.NewContext(req, rec)))
	return rec, gotSession, gotTrace
}

func TestSessionMiddleware_KeepsClientSession(t *testing.T) {
	rec, session, trace := serve(t, map[string]string{
		HeaderSessionID: "sess-42",
		HeaderRequestID: "req-1",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "sess-42", session)
	assert.Equal(t, "req-1", trace)
	assert.Equal(t, "sess-42", rec.Header().Get(HeaderSessionID))
}

func TestSessionMiddleware_GeneratesMissingIDs(t *testing.T) {
	rec, session, trace := serve(t, nil)

	_, err := uuid.Parse(session)
	assert.NoError(t, err)
	_, err = uuid.Parse(trace)
	assert.NoError(t, err)
	assert.Equal(t, session, rec.Header().Get(HeaderSessionID))
	assert.Equal(t, trace, rec.Header().Get(HeaderRequestID))
}

func TestSessionMiddleware_RejectsMalformed(t *testing.T) {
	for _, id := range []string{"a:b", strings.Repeat("x", maxSessionIDLen+1)} {
		rec, session, _ := serve(t, map[string]string{HeaderSessionID: id})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, session)
	}
}
