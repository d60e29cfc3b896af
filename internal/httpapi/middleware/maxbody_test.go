package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMaxBodyBytes_RejectsOversizedBody exercises scenario 9: a 1.5 MB
// body against a 1 MB limit is rejected 413 before the wrapped handler
// (standing in for the engine) ever runs.
func TestMaxBodyBytes_RejectsOversizedBody(t *testing.T) {
	const limit = 1 << 20 // 1 MB
	oversized := strings.Repeat("a", int(limit*3/2))

	var handlerCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	handler := MaxBodyBytes(limit)(next)

	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(oversized))
	req.ContentLength = int64(len(oversized))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, handlerCalled, "the wrapped handler must never see an oversized body")
	assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
}

// TestMaxBodyBytes_AllowsBodyWithinLimit confirms the guard doesn't
// reject ordinary requests.
func TestMaxBodyBytes_AllowsBodyWithinLimit(t *testing.T) {
	const limit = 1 << 20

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := MaxBodyBytes(limit)(next)

	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(`{"model":"echo"}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
