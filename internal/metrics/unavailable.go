package metrics

import (
	"context"

	"vqgate/internal/media/frames"
)

type unavailable struct {
	name string
}

// NewUnavailable registers a metric name that has no implementation yet. It
// always returns an unavailable result so consumers can tell the gap apart
// from a genuine zero score.
func NewUnavailable(name string) Metric { return unavailable{name: name} }

func (u unavailable) Name() string { return u.name }

func (u unavailable) Compute(context.Context, *frames.Clip, Reference) (Result, error) {
	return Result{
		Status:  StatusUnavailable,
		Details: map[string]any{"status": "not_implemented"},
	}, nil
}
