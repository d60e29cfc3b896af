package handler

import "encoding/json"

// PredictRequest is the body for POST /predict and /predict/async.
type PredictRequest struct {
	Model            string          `json:"model" validate:"required"`
	Version          string          `json:"version,omitempty"`
	Data             json.RawMessage `json:"data" validate:"required"`
	Timeout          *float64        `json:"timeout,omitempty" validate:"omitempty,min=0"`
	MaxAttempts      int             `json:"max_attempts,omitempty" validate:"omitempty,min=1"`
	MaxRuntimeS      *float64        `json:"max_runtime_s,omitempty" validate:"omitempty,min=0"`
	MaxTotalRuntimeS *float64        `json:"max_total_runtime_s,omitempty" validate:"omitempty,min=0"`
	Device           string          `json:"device,omitempty"`
	Cancellable      bool            `json:"cancellable,omitempty"`
}

// PredictBatchRequest is the body for POST /predict/batch and
// /predict/async/batch.
type PredictBatchRequest struct {
	Model            string            `json:"model" validate:"required"`
	Version          string            `json:"version,omitempty"`
	Items            []json.RawMessage `json:"items" validate:"required,min=1"`
	Timeout          *float64          `json:"timeout,omitempty" validate:"omitempty,min=0"`
	MaxAttempts      int               `json:"max_attempts,omitempty" validate:"omitempty,min=1"`
	MaxRuntimeS      *float64          `json:"max_runtime_s,omitempty" validate:"omitempty,min=0"`
	MaxTotalRuntimeS *float64          `json:"max_total_runtime_s,omitempty" validate:"omitempty,min=0"`
	Device           string            `json:"device,omitempty"`
	Cancellable      bool              `json:"cancellable,omitempty"`
}

// PredictResponse is the 200 body for the synchronous single-item path.
type PredictResponse struct {
	Result json.RawMessage `json:"result"`
}

// PredictBatchResponse is the 200 body for the synchronous batch path.
type PredictBatchResponse struct {
	Results json.RawMessage `json:"results"`
}

// AsyncResponse is the 200 body for both async submit routes.
type AsyncResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse is the shared shape for /jobs/{id}, /predict/async/{id}, and
// the cancel route.
type JobResponse struct {
	JobID        string          `json:"job_id"`
	Status       string          `json:"status"`
	Model        string          `json:"model"`
	Version      string          `json:"version"`
	CreatedAt    string          `json:"created_at"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// ModelsResponse is the 200 body for GET /models.
type ModelsResponse struct {
	Models []ModelRef `json:"models"`
}

// ModelRef names one registered (name, version) pair.
type ModelRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
