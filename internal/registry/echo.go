package registry

import (
	"context"
	"strings"
)

// echoV1 mirrors the original Python reference implementation's dummy
// validation model: it wraps the input unchanged under an "echo" key.
func echoV1() Pipeline {
	return BasePipeline{Runner: func(_ context.Context, input any) (any, error) {
		return map[string]any{"echo": input}, nil
	}}
}

// echoV2 is the second registered version of the echo model, used to give
// routing tests (canary, A/B) two observably different versions to
// distinguish between. It additionally upper-cases any string values nested
// in the input before echoing them back.
func echoV2() Pipeline {
	return BasePipeline{Runner: func(_ context.Context, input any) (any, error) {
		return map[string]any{"echo": upperStrings(input)}, nil
	}}
}

func upperStrings(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToUpper(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = upperStrings(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = upperStrings(val)
		}
		return out
	default:
		return v
	}
}
