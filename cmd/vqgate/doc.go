// Command vqgate evaluates generated video against a golden set.
//
// Subcommands score videos, curate golden references, run regression
// suites, compare two model versions, benchmark an inference command, and
// gate CI runs on the recorded history. Every listing command accepts
// --json for machine-readable output.
package main
