// Package registry resolves (model, version) pairs to Pipeline instances,
// building each one lazily on first use and caching it for the lifetime of
// the process.
package registry

import "context"

// Pipeline is the open extension point for model implementations. The
// registry never knows about a pipeline's internals; it only builds one and
// hands back the interface. Pipelines must be safe for concurrent Run and
// RunBatch calls since a pool may reuse the same instance across workers.
type Pipeline interface {
	Run(ctx context.Context, input any) (any, error)
	RunBatch(ctx context.Context, inputs []any) ([]any, error)
}

// BasePipeline gives RunBatch a sequential fallback over Run so that a
// pipeline implementation only has to provide Run to satisfy Pipeline.
// Pipelines that can batch more efficiently embed this and override
// RunBatch.
type BasePipeline struct {
	Runner func(ctx context.Context, input any) (any, error)
}

func (p BasePipeline) Run(ctx context.Context, input any) (any, error) {
	return p.Runner(ctx, input)
}

func (p BasePipeline) RunBatch(ctx context.Context, inputs []any) ([]any, error) {
	out := make([]any, len(inputs))
	for i, in := range inputs {
		result, err := p.Runner(ctx, in)
		if err != nil {
			return nil, err
		}
		out[i] = result
	}
	return out, nil
}
