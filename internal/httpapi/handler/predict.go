package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rezkam/inference-engine/internal/engine"
	"github.com/rezkam/inference-engine/internal/httpapi/response"
)

func requestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

func (s *Server) paramsFrom(r *http.Request, model, version, device string, timeout *float64, maxAttempts int, maxRuntimeS, maxTotalRuntimeS *float64, cancellable bool) engine.Params {
	var d time.Duration
	if timeout != nil {
		d = time.Duration(*timeout * float64(time.Second))
	}
	return engine.Params{
		Model:            model,
		Version:          version,
		RequestID:        requestID(r),
		Timeout:          d,
		MaxAttempts:      maxAttempts,
		MaxRuntimeS:      maxRuntimeS,
		MaxTotalRuntimeS: maxTotalRuntimeS,
		Device:           device,
		Cancellable:      cancellable,
	}
}

// Predict handles POST /predict.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	p := s.paramsFrom(r, req.Model, req.Version, req.Device, req.Timeout, req.MaxAttempts, req.MaxRuntimeS, req.MaxTotalRuntimeS, req.Cancellable)
	result, err := s.engine.Predict(r.Context(), req.Data, p)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, PredictResponse{Result: result})
}

// PredictBatch handles POST /predict/batch.
func (s *Server) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req PredictBatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		response.BadRequest(w, "invalid items payload")
		return
	}

	p := s.paramsFrom(r, req.Model, req.Version, req.Device, req.Timeout, req.MaxAttempts, req.MaxRuntimeS, req.MaxTotalRuntimeS, req.Cancellable)
	result, err := s.engine.PredictBatch(r.Context(), items, p)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, PredictBatchResponse{Results: result})
}

// PredictAsync handles POST /predict/async.
func (s *Server) PredictAsync(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	p := s.paramsFrom(r, req.Model, req.Version, req.Device, req.Timeout, req.MaxAttempts, req.MaxRuntimeS, req.MaxTotalRuntimeS, req.Cancellable)
	jobID, err := s.engine.Submit(r.Context(), req.Data, p)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, AsyncResponse{JobID: jobID})
}

// PredictAsyncBatch handles POST /predict/async/batch.
func (s *Server) PredictAsyncBatch(w http.ResponseWriter, r *http.Request) {
	var req PredictBatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		response.BadRequest(w, "invalid items payload")
		return
	}

	p := s.paramsFrom(r, req.Model, req.Version, req.Device, req.Timeout, req.MaxAttempts, req.MaxRuntimeS, req.MaxTotalRuntimeS, req.Cancellable)
	jobID, err := s.engine.SubmitBatch(r.Context(), items, p)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, AsyncResponse{JobID: jobID})
}

// decodeAndValidate JSON-decodes body into dst and runs struct-tag
// validation, writing a 400 response and returning false on any failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}
