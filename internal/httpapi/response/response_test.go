package response

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezkam/inference-engine/internal/domain"
)

// TestFromDomainError_ModelNotFoundIs400 guards scenario 8: an unknown
// model:version must map to 400 with the underlying detail message, not a
// generic 404 that drops the model/version the caller asked for.
func TestFromDomainError_ModelNotFoundIs400(t *testing.T) {
	err := fmt.Errorf("%w: %s:%s", domain.ErrModelNotFound, "echo", "v99")

	rec := httptest.NewRecorder()
	FromDomainError(rec, httptest.NewRequest(http.MethodPost, "/predict", nil), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "echo")
	assert.Contains(t, rec.Body.String(), "v99")
}

func TestFromDomainError_JobNotFoundIs404(t *testing.T) {
	rec := httptest.NewRecorder()
	FromDomainError(rec, httptest.NewRequest(http.MethodGet, "/jobs/x", nil), domain.ErrJobNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFromDomainError_ExecutorSaturatedIs503(t *testing.T) {
	rec := httptest.NewRecorder()
	FromDomainError(rec, httptest.NewRequest(http.MethodPost, "/predict", nil), domain.ErrExecutorSaturated)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
