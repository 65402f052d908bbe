// Package comparison scores two candidate models on the scenarios they share
// and tallies which one wins each metric.
//
// Comparison is read-only: it never consults or mutates the golden set.
package comparison
