// Package golden manages the golden set: approved reference artifacts that
// regression runs compare new model output against.
//
// Layout under the configured root:
//
//	golden_set.json   snapshot of every reference, rewritten atomically
//	events.jsonl      append-only audit log, one JSON event per mutation
//	videos/<id><ext>  copied artifacts
//	.golden.lock      writer lease
//
// Every mutation takes an exclusive flock lease on .golden.lock, reloads
// the snapshot (replaying any events newer than it), applies the change,
// appends the event, and rewrites the snapshot through a temp file and
// rename. Multiple processes can therefore share one store safely. Each
// Manager keeps its own in-memory index for reads; Reload refreshes it.
//
// References are never deleted here. Approval is the only mutation after
// creation.
package golden
