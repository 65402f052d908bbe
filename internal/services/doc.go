// Package services defines shared utilities consumed by the evaluation
// components and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp scenario identifiers, metric names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (missing input, bad configuration, external tool) with
//     errors.Is instead of string matching.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability) stays uniform across the tool.
package services
