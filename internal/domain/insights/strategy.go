package insights

import (
	"context"
	"fmt"

	"github.com/vitalia/portal/internal/platform/llm"
)

// Strategy describes one model-backed endpoint: how to prompt the model, how
// to check its answer, and what to return when no credential is configured.
type Strategy[In, Out any] struct {
	Name     string
	Params   llm.Params
	Prompt   func(In) string
	Fallback func(In) Out
	// Decode parses the model's message content. Nil means llm.DecodeJSON.
	Decode func(content string, out *Out) error
	// Validate may normalize the decoded answer in place.
	Validate func(*Out) error
}

type Result[Out any] struct {
	Source Source
	Value  Out
}

// Run calls the model when apiKey is non-empty and falls back otherwise. A
// failing model call is an error; it never degrades to the fallback.
func (s Strategy[In, Out]) Run(ctx context.Context, model llm.Completer, apiKey string, in In) (Result[Out], error) {
	if apiKey == "" || model == nil {
		return Result[Out]{Source: SourceDemo, Value: s.Fallback(in)}, nil
	}

	content, err := model.Complete(ctx, apiKey, s.Prompt(in), s.Params)
	if err != nil {
		return Result[Out]{}, err
	}

	var out Out
	if s.Decode != nil {
		err = s.Decode(content, &out)
	} else {
		err = llm.DecodeJSON(content, &out)
	}
	if err != nil {
		return Result[Out]{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	if s.Validate != nil {
		if err := s.Validate(&out); err != nil {
			return Result[Out]{}, fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return Result[Out]{Source: SourceAI, Value: out}, nil
}
