// Package scenario loads the catalog of fixed test conditions used by the
// regression, comparison, and benchmark components.
//
// A scenario names a prompt and expected duration and carries per-metric
// minimum scores plus latency and throughput limits. The catalog is YAML: a
// default set is embedded in the binary and an optional file named by
// scenarios.catalog_path adds scenarios or replaces embedded ones by id.
// Scenarios are immutable once loaded; Lookup returns copies.
package scenario
