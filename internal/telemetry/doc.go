// Package telemetry exposes regression and benchmark outcomes as Prometheus
// metrics.
//
// Metrics implements both regression.Recorder and benchmark.Recorder, so a
// single instance can be handed to the runners for a whole CLI invocation.
// Each Metrics owns a private registry; nothing is registered globally.
//
// CI hosts rarely keep a scrape endpoint alive for a short-lived process, so
// WriteTextfile writes the registry in the node_exporter textfile format
// instead. An empty path disables the write.
package telemetry
