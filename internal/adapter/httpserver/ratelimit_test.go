package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func limitedHandler(ratePerSecond float64, burst int) echo.HandlerFunc {
	return newRateLimiter(ratePerSecond, burst)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func serveFrom(t *testing.T, h echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/activate", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, h(echo.New().NewContext(req, rec)))
	return rec
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	h := limitedHandler(10, 3)

	for range 3 {
		assert.Equal(t, http.StatusOK, serveFrom(t, h, testRemoteAddr).Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	h := limitedHandler(0.01, 1)

	assert.Equal(t, http.StatusOK, serveFrom(t, h, testRemoteAddr).Code)

	rec := serveFrom(t, h, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	h := limitedHandler(0.01, 1)

	assert.Equal(t, http.StatusOK, serveFrom(t, h, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, serveFrom(t, h, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, serveFrom(t, h, testRemoteAddr).Code)
}

func TestRateLimiterSetsRetryAfter(t *testing.T) {
	h := limitedHandler(0.25, 1)

	serveFrom(t, h, testRemoteAddr)
	rec := serveFrom(t, h, testRemoteAddr)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
}

func TestRateLimiterSkipsReads(t *testing.T) {
	h := limitedHandler(0.01, 1)

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		req.RemoteAddr = testRemoteAddr
		rec := httptest.NewRecorder()
		require.NoError(t, h(echo.New().NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
