package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/engine"
	"github.com/rezkam/inference-engine/internal/registry"
)

// fakeEngine implements the Engine interface the handlers dispatch to,
// letting each test control the outcome and inspect the Params the
// handler built from the decoded request.
type fakeEngine struct {
	predictFunc func(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error)
	lastParams  engine.Params
	called      bool
}

func (f *fakeEngine) Predict(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error) {
	f.called = true
	f.lastParams = p
	if f.predictFunc != nil {
		return f.predictFunc(ctx, payload, p)
	}
	return nil, nil
}

func (f *fakeEngine) PredictBatch(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error) {
	return f.Predict(ctx, payload, p)
}

func (f *fakeEngine) Submit(ctx context.Context, payload json.RawMessage, p engine.Params) (string, error) {
	f.called = true
	f.lastParams = p
	return "job-1", nil
}

func (f *fakeEngine) SubmitBatch(ctx context.Context, payload json.RawMessage, p engine.Params) (string, error) {
	return f.Submit(ctx, payload, p)
}

func (f *fakeEngine) Get(ctx context.Context, id string) (*domain.Job, error) { return nil, nil }
func (f *fakeEngine) Cancel(ctx context.Context, id, reason string) error     { return nil }

type fakeRegistry struct{}

func (fakeRegistry) ListModels() []registry.ModelRef { return nil }

func doPredict(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.Predict(rec, req)
	return rec
}

// TestPredict_HappySync exercises scenario 1: a plain synchronous predict
// returns 200 with the pipeline's result embedded in the envelope.
func TestPredict_HappySync(t *testing.T) {
	fe := &fakeEngine{
		predictFunc: func(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error) {
			return json.RawMessage(`{"echo":{"x":42}}`), nil
		},
	}
	s := NewServer(fe, fakeRegistry{})

	rec := doPredict(t, s, `{"model":"echo","version":"v1","data":{"x":42}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, `{"echo":{"x":42}}`, string(resp.Result))
}

// TestPredict_ExplicitVersionForwarded exercises scenario 2 at the HTTP
// boundary: an explicit version in the request body reaches engine.Params
// unchanged, so the resolver downstream sees it and a canary route can
// never override it.
func TestPredict_ExplicitVersionForwarded(t *testing.T) {
	fe := &fakeEngine{}
	s := NewServer(fe, fakeRegistry{})

	rec := doPredict(t, s, `{"model":"classifier","version":"v2","data":{}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, fe.called)
	assert.Equal(t, "v2", fe.lastParams.Version)
	assert.Equal(t, "classifier", fe.lastParams.Model)
}

// TestPredict_UnknownModelVersion exercises scenario 8: an unresolvable
// model:version combination yields 400 with a message naming both the
// model and the version, via the engine's wrapped ErrModelNotFound.
func TestPredict_UnknownModelVersion(t *testing.T) {
	notFound := fmt.Errorf("%w: %s:%s", domain.ErrModelNotFound, "echo", "v99")
	fe := &fakeEngine{
		predictFunc: func(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error) {
			return nil, &engine.PredictionError{Cause: notFound}
		},
	}
	s := NewServer(fe, fakeRegistry{})

	rec := doPredict(t, s, `{"model":"echo","version":"v99","data":{}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "echo")
	assert.Contains(t, rec.Body.String(), "v99")
}

// TestPredict_InvalidJSONBody ensures malformed JSON never reaches the
// engine and is rejected with 400, independent of the payload-size guard.
func TestPredict_InvalidJSONBody(t *testing.T) {
	fe := &fakeEngine{}
	s := NewServer(fe, fakeRegistry{})

	rec := doPredict(t, s, `{not-json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, fe.called)
}
