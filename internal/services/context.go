package services

import "context"

type contextKey string

const (
	scenarioKey contextKey = "scenario_id"
	metricKey   contextKey = "metric"
	runIDKey    contextKey = "run_id"
)

// WithScenario annotates context with the scenario identifier under evaluation.
func WithScenario(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, scenarioKey, id)
}

// ScenarioFromContext returns the scenario identifier if present.
func ScenarioFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, scenarioKey)
}

// WithMetric annotates context with the metric currently being computed.
func WithMetric(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, metricKey, name)
}

// MetricFromContext returns the metric name if present.
func MetricFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, metricKey)
}

// WithRunID annotates context with a regression or benchmark run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
