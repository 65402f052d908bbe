// Package metrics scores decoded video clips against quality dimensions.
//
// Engine owns a registry of Metric implementations keyed by name plus the
// per-metric thresholds in force. ComputeAll decodes an artifact once through
// a frames.Source and runs every selected metric over the clip. A metric that
// returns an error or panics is converted into a failing Result carrying the
// error text in Details; the remaining metrics still run. Only a missing or
// undecodable artifact fails the whole call.
//
// Results are tagged: StatusScored results carry a real score and the engine
// stamps Passed as score >= threshold. StatusUnavailable results come from
// metrics that have no implementation yet (instruction following, semantic
// similarity); they always fail and downstream consumers exclude them from
// regression classification.
//
// Built-in metrics:
//   - temporal_consistency: mean SSIM over consecutive frame pairs
//   - optical_flow_consistency: inverse normalized spread of Lucas-Kanade flow magnitudes
//   - ssim: SSIM against a reference clip, or temporal SSIM without one
//   - perceptual_quality: weighted sharpness, contrast, brightness consistency
//   - instruction_following, semantic_similarity: unavailable placeholders
package metrics
