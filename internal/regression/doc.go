// Package regression compares candidate model output against the latest
// approved golden reference for each scenario and assigns a verdict.
//
// Per metric present in both the baseline and the candidate, the delta is
// candidate minus baseline. A metric failing its own threshold is "failing";
// otherwise a delta below -tolerance is "degraded", above +tolerance is
// "improved", and anything in between (boundaries included) "passed".
// Unavailable metrics are reported as skipped and never classified; metrics
// the baseline never recorded are reported as uncovered.
//
// The verdict is the first match of FAIL (any failing), DEGRADED (degraded
// share above the configured fraction), IMPROVED (more improved than
// degraded), PASS (average delta within tolerance), then UNSTABLE. A
// scenario without an approved baseline is ERROR.
package regression
