package golden

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vqgate/internal/logging"
	"vqgate/internal/testsupport"
)

func TestAddReferenceRemovesArtifactWhenEventNotRecorded(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "inputs", "clip.mp4")
	testsupport.WriteFile(t, src, 4096, 3)
	source := testsupport.NewFakeSource()
	source.Set(src, testsupport.MovingClip(16, 16, 4, 1))

	root := filepath.Join(base, "golden")
	m, err := New(root, WithSource(source), WithLogger(logging.NewNop()), WithLockTimeout(time.Second))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	diskFull := errors.New("no space left on device")
	m.recordEvent = func(Event) error { return diskFull }

	_, err = m.AddReference(context.Background(), AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected append failure, got %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, videosDirName))
	if err != nil {
		t.Fatalf("read videos dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no orphaned artifacts, found %d (%s)", len(entries), entries[0].Name())
	}
	if refs := m.References(); len(refs) != 0 {
		t.Fatalf("expected no indexed references, got %d", len(refs))
	}

	m.recordEvent = m.appendEvent
	id, err := m.AddReference(context.Background(), AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	if err != nil {
		t.Fatalf("retry AddReference returned error: %v", err)
	}
	ref, err := m.GetReference(id)
	if err != nil {
		t.Fatalf("GetReference returned error: %v", err)
	}
	if _, err := os.Stat(m.ArtifactPath(ref)); err != nil {
		t.Fatalf("expected stored artifact after retry: %v", err)
	}
}
