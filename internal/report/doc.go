// Package report renders results as indented JSON documents for CI
// artifacts and dashboards.
//
// Every document is wrapped in an Envelope carrying its Kind and generation
// time. WriteFile writes through a temp file and rename, and FileName gives
// the timestamped name used under the reports directory.
//
// Reports are output sinks only; nothing reads them back to make decisions.
package report
