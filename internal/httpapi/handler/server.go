// Package handler implements the HTTP handlers mounted by the router,
// adapted from the teacher's internal/http/handler package: thin adapters
// that decode/validate a request, call into the engine, and map the result
// (or error) onto the response envelope.
package handler

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/rezkam/inference-engine/internal/domain"
	"github.com/rezkam/inference-engine/internal/engine"
	"github.com/rezkam/inference-engine/internal/registry"
)

// Engine is the subset of *engine.Engine the HTTP layer needs.
type Engine interface {
	Predict(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error)
	PredictBatch(ctx context.Context, payload json.RawMessage, p engine.Params) (json.RawMessage, error)
	Submit(ctx context.Context, payload json.RawMessage, p engine.Params) (string, error)
	SubmitBatch(ctx context.Context, payload json.RawMessage, p engine.Params) (string, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	Cancel(ctx context.Context, id, reason string) error
}

// ModelRegistry lists the models/versions the registry knows about.
type ModelRegistry interface {
	ListModels() []registry.ModelRef
}

// Server bundles the engine and registry the handlers dispatch to.
type Server struct {
	engine   Engine
	registry ModelRegistry
	validate *validator.Validate
}

// NewServer returns a Server wired to its collaborators.
func NewServer(e Engine, reg ModelRegistry) *Server {
	return &Server{engine: e, registry: reg, validate: validator.New()}
}
