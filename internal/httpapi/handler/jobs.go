package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/httpapi/response"
)

func toJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		JobID:        job.ID,
		Status:       string(job.Status),
		Model:        job.ModelName,
		Version:      job.ModelVersion,
		CreatedAt:    job.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
	}
}

// GetJob handles both GET /jobs/{id} and GET /predict/async/{id} — they
// share the same job representation.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.engine.Get(r.Context(), id)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toJobResponse(job))
}

// CancelJob handles POST /jobs/{id}/cancel.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.engine.Get(r.Context(), id)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if !job.Cancellable || job.Status.Terminal() {
		response.BadRequest(w, "job is not cancellable")
		return
	}

	if err := s.engine.Cancel(r.Context(), id, "cancelled via API"); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	job, err = s.engine.Get(r.Context(), id)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toJobResponse(job))
}
