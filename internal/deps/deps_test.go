package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"vqgate/internal/deps"
	"vqgate/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
	if missing := deps.Missing(results); len(missing) != 2 {
		t.Fatalf("expected 2 missing, got %d", len(missing))
	}
}

func TestToolRequirementsWithStubs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := deps.CheckBinaries(deps.ToolRequirements(cfg))
	if len(results) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe, got %d", len(results))
	}
	if missing := deps.Missing(results); len(missing) != 0 {
		t.Fatalf("expected stubbed tools to resolve, missing %#v", missing)
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []deps.Status{
		{Requirement: deps.Requirement{Name: "mediainfo", Optional: true}},
		{Requirement: deps.Requirement{Name: "decoder"}},
	}
	missing := deps.Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "decoder" {
		t.Fatalf("unexpected missing set %#v", missing)
	}
}
