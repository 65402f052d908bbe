package golden_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vqgate/internal/golden"
	"vqgate/internal/logging"
	"vqgate/internal/services"
	"vqgate/internal/testsupport"
)

type fixture struct {
	root    string
	dir     string
	source  *testsupport.FakeSource
	clockMu sync.Mutex
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	return &fixture{
		root:   filepath.Join(base, "golden"),
		dir:    filepath.Join(base, "inputs"),
		source: testsupport.NewFakeSource(),
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) now() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.clock
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.clock = f.clock.Add(d)
}

func (f *fixture) manager(t *testing.T) *golden.Manager {
	t.Helper()
	m, err := golden.New(f.root,
		golden.WithSource(f.source),
		golden.WithLogger(logging.NewNop()),
		golden.WithClock(f.now),
		golden.WithFrameInterval(2),
		golden.WithLockTimeout(2*time.Second),
	)
	if err != nil {
		t.Fatalf("golden.New returned error: %v", err)
	}
	return m
}

// video writes an artifact file and registers a clip of count frames for it.
func (f *fixture) video(t *testing.T, name string, seed byte, count int) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	testsupport.WriteFile(t, path, 4096, seed)
	f.source.Set(path, testsupport.MovingClip(16, 16, count, float64(seed)))
	return path
}

func TestAddReferenceStoresArtifactAndHashes(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	src := f.video(t, "clip.MP4", 1, 5)

	id, err := m.AddReference(context.Background(), golden.AddRequest{
		ScenarioID:   "S1",
		VideoPath:    src,
		ModelVersion: "v1",
		MetricScores: map[string]float64{"ssim": 0.85},
	})
	if err != nil {
		t.Fatalf("AddReference returned error: %v", err)
	}
	if id != "S1_v1_20260301T120000.000000" {
		t.Fatalf("unexpected id %q", id)
	}

	ref, err := m.GetReference(id)
	if err != nil {
		t.Fatalf("GetReference returned error: %v", err)
	}
	wantHash, _ := golden.ComputeVideoHash(src)
	if ref.VideoHash != wantHash {
		t.Fatalf("expected video hash %s, got %s", wantHash, ref.VideoHash)
	}
	if len(ref.FrameHashes) != 3 {
		t.Fatalf("expected frames 0,2,4 sampled, got %d hashes", len(ref.FrameHashes))
	}
	if ref.MetricScores["ssim"] != 0.85 {
		t.Fatalf("expected scores recorded verbatim, got %v", ref.MetricScores)
	}
	if ref.Metadata.Width != 16 || ref.Metadata.SizeBytes != 4096 {
		t.Fatalf("unexpected metadata %+v", ref.Metadata)
	}
	stored := m.ArtifactPath(ref)
	if filepath.Base(stored) != id+".mp4" {
		t.Fatalf("unexpected stored path %s", stored)
	}
	if copied, _ := golden.ComputeVideoHash(stored); copied != wantHash {
		t.Fatalf("stored copy hash mismatch")
	}
	if ref.Approval.Approved || ref.Approval.ApprovedAt != nil {
		t.Fatalf("expected pending approval, got %+v", ref.Approval)
	}
}

func TestAddReferenceTwiceYieldsDistinctIDsSameHash(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	src := f.video(t, "clip.mp4", 3, 3)
	req := golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"}

	first, err := m.AddReference(context.Background(), req)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	f.advance(time.Second)
	second, err := m.AddReference(context.Background(), req)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	third, err := m.AddReference(context.Background(), req)
	if err != nil {
		t.Fatalf("third add: %v", err)
	}
	if first == second || second == third {
		t.Fatalf("expected distinct ids: %s %s %s", first, second, third)
	}
	if !strings.HasSuffix(third, "-2") {
		t.Fatalf("expected collision suffix, got %s", third)
	}
	a, _ := m.GetReference(first)
	b, _ := m.GetReference(second)
	if a.VideoHash != b.VideoHash {
		t.Fatal("expected identical content hashes")
	}
	h1, _ := golden.ComputeVideoHash(src)
	h2, _ := golden.ComputeVideoHash(src)
	if h1 != h2 {
		t.Fatal("expected hashing to be idempotent")
	}
}

func TestAddReferenceMissingSourceFails(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	_, err := m.AddReference(context.Background(), golden.AddRequest{
		ScenarioID: "S1", ModelVersion: "v1", VideoPath: filepath.Join(f.dir, "missing.mp4"),
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(m.References()) != 0 {
		t.Fatal("expected no references after failure")
	}
}

func TestGetLatestReferenceFilters(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	ctx := context.Background()
	src := f.video(t, "clip.mp4", 1, 2)

	if _, ok := m.GetLatestReference("S1", golden.LatestOptions{}); ok {
		t.Fatal("expected no reference in empty store")
	}

	approvedV1, _ := m.AddReference(ctx, golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1", Approved: true, Approver: "ana"})
	f.advance(time.Minute)
	pendingV2, _ := m.AddReference(ctx, golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v2"})
	f.advance(time.Minute)
	otherScenario, _ := m.AddReference(ctx, golden.AddRequest{ScenarioID: "S2", VideoPath: src, ModelVersion: "v2", Approved: true})

	tests := []struct {
		name   string
		id     string
		opts   golden.LatestOptions
		want   string
		wantOK bool
	}{
		{"any", "S1", golden.LatestOptions{}, pendingV2, true},
		{"approved only", "S1", golden.LatestOptions{ApprovedOnly: true}, approvedV1, true},
		{"version pinned", "S1", golden.LatestOptions{ModelVersion: "v1"}, approvedV1, true},
		{"version and approval", "S1", golden.LatestOptions{ModelVersion: "v2", ApprovedOnly: true}, "", false},
		{"other scenario", "S2", golden.LatestOptions{}, otherScenario, true},
		{"unknown scenario", "S3", golden.LatestOptions{}, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ref, ok := m.GetLatestReference(tc.id, tc.opts)
			if ok != tc.wantOK || ref.ID != tc.want {
				t.Fatalf("got (%q, %v), want (%q, %v)", ref.ID, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestGetLatestReferenceTieBreaksOnID(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	src := f.video(t, "clip.mp4", 1, 2)
	first, _ := m.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	second, _ := m.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})

	ref, ok := m.GetLatestReference("S1", golden.LatestOptions{})
	if !ok || ref.ID != second || second <= first {
		t.Fatalf("expected lexically greatest id %s, got %s (%v)", second, ref.ID, ok)
	}
	byScenario := m.GetReferencesByScenario("S1")
	if len(byScenario) != 2 || byScenario[0].ID != first {
		t.Fatalf("unexpected scenario ordering: %v", byScenario)
	}
}

func TestValidateReferencePersistsApproval(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	src := f.video(t, "clip.mp4", 1, 2)
	id, _ := m.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	f.advance(time.Hour)

	ref, err := m.ValidateReference(context.Background(), id, "reviewer", true, "looks right")
	if err != nil {
		t.Fatalf("ValidateReference returned error: %v", err)
	}
	if !ref.Approval.Approved || ref.Approval.Approver != "reviewer" || ref.Approval.Notes != "looks right" {
		t.Fatalf("unexpected approval %+v", ref.Approval)
	}
	if ref.Approval.ApprovedAt == nil || !ref.Approval.ApprovedAt.Equal(f.now()) {
		t.Fatalf("expected approval stamped at %v, got %v", f.now(), ref.Approval.ApprovedAt)
	}

	reopened := f.manager(t)
	again, err := reopened.GetReference(id)
	if err != nil || !again.Approval.Approved {
		t.Fatalf("expected approval to persist, got %+v (%v)", again.Approval, err)
	}
}

func TestValidateUnknownReferenceFails(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	_, err := m.ValidateReference(context.Background(), "nope", "x", true, "")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.GetReference("nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from GetReference, got %v", err)
	}
}

func TestSnapshotSchemaAndEventLog(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	src := f.video(t, "clip.mp4", 1, 2)
	id, _ := m.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	if _, err := m.ValidateReference(context.Background(), id, "ana", true, ""); err != nil {
		t.Fatalf("ValidateReference: %v", err)
	}

	payload, err := os.ReadFile(filepath.Join(f.root, "golden_set.json"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap map[string]json.RawMessage
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	for _, key := range []string{"version", "last_updated", "reference_count", "references"} {
		if _, ok := snap[key]; !ok {
			t.Fatalf("snapshot missing %q", key)
		}
	}
	if string(snap["reference_count"]) != "1" {
		t.Fatalf("unexpected reference_count %s", snap["reference_count"])
	}

	events, err := m.Events()
	if err != nil {
		t.Fatalf("Events returned error: %v", err)
	}
	if len(events) != 2 || events[0].Type != golden.EventReferenceAdded || events[1].Type != golden.EventReferenceValidated {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("unexpected sequence numbers %d %d", events[0].Seq, events[1].Seq)
	}
}

func TestReplayRebuildsIndexFromEvents(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	src := f.video(t, "clip.mp4", 1, 2)
	id, _ := m.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	_, _ = m.ValidateReference(context.Background(), id, "ana", true, "")

	if err := os.Remove(filepath.Join(f.root, "golden_set.json")); err != nil {
		t.Fatalf("remove snapshot: %v", err)
	}
	eventsPath := filepath.Join(f.root, "events.jsonl")
	fh, err := os.OpenFile(eventsPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	_, _ = fh.WriteString(`{"seq":3,"type":"reference_added","reference":{"refer`)
	fh.Close()

	replayed := f.manager(t)
	ref, err := replayed.GetReference(id)
	if err != nil {
		t.Fatalf("expected replayed reference: %v", err)
	}
	if !ref.Approval.Approved {
		t.Fatal("expected approval event to be replayed")
	}
	if len(replayed.References()) != 1 {
		t.Fatalf("expected torn line to be ignored, got %d refs", len(replayed.References()))
	}

	f.advance(time.Second)
	if _, err := replayed.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v2"}); err != nil {
		t.Fatalf("add after torn tail: %v", err)
	}
	if err := os.Remove(filepath.Join(f.root, "golden_set.json")); err != nil {
		t.Fatalf("remove snapshot: %v", err)
	}
	if got := len(f.manager(t).References()); got != 2 {
		t.Fatalf("expected clean log with 2 references after repair, got %d", got)
	}
}

func TestManagersSharingRootDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	a := f.manager(t)
	b := f.manager(t)
	src := f.video(t, "clip.mp4", 1, 2)

	idA, err := a.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	if err != nil {
		t.Fatalf("add via a: %v", err)
	}
	idB, err := b.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"})
	if err != nil {
		t.Fatalf("add via b: %v", err)
	}
	if idA == idB {
		t.Fatal("expected b to observe a's reference when generating ids")
	}
	if len(b.References()) != 2 {
		t.Fatalf("expected b to hold both references, got %d", len(b.References()))
	}
	if len(a.References()) != 1 {
		t.Fatal("expected a's index to stay stale until reload")
	}
	if err := a.Reload(); err != nil || len(a.References()) != 2 {
		t.Fatalf("expected reload to pick up b's write (%v)", err)
	}
}

func TestCompareVideos(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	ctx := context.Background()
	a := f.video(t, "a.mp4", 1, 6)
	b := f.video(t, "b.mp4", 1, 6)
	c := f.video(t, "c.mp4", 9, 6)
	short := f.video(t, "short.mp4", 1, 2)

	same, err := m.CompareVideos(ctx, a, b, golden.LevelHash)
	if err != nil || !same.Match || same.Similarity != 1 {
		t.Fatalf("expected hash match, got %+v (%v)", same, err)
	}
	diff, _ := m.CompareVideos(ctx, a, c, golden.LevelHash)
	if diff.Match {
		t.Fatal("expected different content hashes")
	}

	frameSame, err := m.CompareVideos(ctx, a, b, golden.LevelFrame)
	if err != nil || !frameSame.Match || frameSame.Similarity != 1 || frameSame.FramesA != 3 {
		t.Fatalf("expected frame match, got %+v (%v)", frameSame, err)
	}
	frameDiff, _ := m.CompareVideos(ctx, a, c, golden.LevelFrame)
	if frameDiff.Match || frameDiff.Similarity >= 1 {
		t.Fatalf("expected frame mismatch, got %+v", frameDiff)
	}
	mismatch, _ := m.CompareVideos(ctx, a, short, golden.LevelFrame)
	if mismatch.Match || !strings.Contains(mismatch.Reason, "3 vs 1") {
		t.Fatalf("expected frame count mismatch reason, got %+v", mismatch)
	}
	if _, err := m.CompareVideos(ctx, a, b, "pixel"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown level, got %v", err)
	}
}

func TestExportSummaryAndMarkdown(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	ctx := context.Background()
	src := f.video(t, "clip.mp4", 1, 2)
	_, _ = m.AddReference(ctx, golden.AddRequest{ScenarioID: "simple_motion", VideoPath: src, ModelVersion: "v1", Approved: true})
	f.advance(time.Second)
	_, _ = m.AddReference(ctx, golden.AddRequest{ScenarioID: "simple_motion", VideoPath: src, ModelVersion: "v2"})
	f.advance(time.Second)
	_, _ = m.AddReference(ctx, golden.AddRequest{ScenarioID: "camera_pan", VideoPath: src, ModelVersion: "v2"})

	summary := m.ExportSummary()
	if summary.Total != 3 || summary.Approved != 1 || summary.Pending != 2 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	motion := summary.ByScenario["simple_motion"]
	if motion.Total != 2 || motion.Approved != 1 || len(motion.Versions) != 2 {
		t.Fatalf("unexpected scenario summary %+v", motion)
	}
	if summary.ByModelVersion["v2"] != 2 {
		t.Fatalf("unexpected version counts %v", summary.ByModelVersion)
	}

	var buf bytes.Buffer
	if err := m.ExportMarkdown(&buf); err != nil {
		t.Fatalf("ExportMarkdown returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# Golden Set Summary", "Simple Motion (`simple_motion`)", "Camera Pan", "- v2: 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markdown:\n%s", want, out)
		}
	}
}
