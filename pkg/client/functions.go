package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Source tags where a function result came from: "ai" or "demo".
type Source string

// FunctionResult is a model-backed function's payload with its source.
type FunctionResult[T any] struct {
	Source Source
	Value  T
}

// callFunction posts body to a /functions/v1 endpoint and extracts the
// payload stored under key.
func callFunction[T any](ctx context.Context, c *Client, name, key string, body any) (*FunctionResult[T], error) {
	var env map[string]json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/functions/v1/"+name, body, &env); err != nil {
		return nil, err
	}
	var res FunctionResult[T]
	for field, dst := range map[string]any{"source": &res.Source, key: &res.Value} {
		raw, ok := env[field]
		if !ok {
			return nil, fmt.Errorf("%s: response has no %q", name, field)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", name, field, err)
		}
	}
	return &res, nil
}

func (c *Client) AnalyzeRisk(ctx context.Context, v RiskVitals) (*FunctionResult[Risk], error) {
	return callFunction[Risk](ctx, c, "analyze-risk", "risk", map[string]any{"vitals": v})
}

func (c *Client) ExtractClinicalData(ctx context.Context, notes string) (*FunctionResult[Extraction], error) {
	return callFunction[Extraction](ctx, c, "extract-clinical-data", "extraction", map[string]any{"notes": notes})
}

func (c *Client) SmartRundown(ctx context.Context, p Snapshot) (*FunctionResult[[]string], error) {
	return callFunction[[]string](ctx, c, "smart-rundown", "rundown", map[string]any{"patientData": p})
}
