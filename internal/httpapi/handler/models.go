package handler

import (
	"net/http"

	"github.com/rezkam/inference-engine/internal/httpapi/response"
)

// ListModels handles GET /models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	refs := s.registry.ListModels()
	models := make([]ModelRef, 0, len(refs))
	for _, ref := range refs {
		models = append(models, ModelRef{Name: ref.Name, Version: ref.Version})
	}
	response.OK(w, ModelsResponse{Models: models})
}
