// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// generated video artifacts.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual video/audio stream properties
//   - Metadata: the flattened media facts recorded on golden references
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result locate the primary video stream and parse
// duration, resolution, frame rate, and size.
package ffprobe
