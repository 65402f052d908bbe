// Package gate turns a run's regression and benchmark results into a single
// CI accept/reject decision.
//
// Evaluate counts regression verdicts by status and benchmark outcomes, then
// checks them against a Policy read from the [gate] config section:
//
//	max_failures            FAIL verdicts allowed
//	max_degraded            DEGRADED verdicts allowed
//	max_benchmark_failures  failing benchmark runs allowed
//	min_pass_rate           share of PASS or IMPROVED verdicts required
//
// Every violated bound adds a reason to the Decision. The CLI maps a
// rejected decision to exit code 10 so pipelines can tell a quality
// rejection apart from a tool failure.
package gate
