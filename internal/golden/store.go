package golden

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vqgate/internal/logging"
	"vqgate/internal/services"
)

const (
	snapshotVersion  = 1
	snapshotFileName = "golden_set.json"
	eventsFileName   = "events.jsonl"
	lockFileName     = ".golden.lock"
	videosDirName    = "videos"
	lockRetryDelay   = 50 * time.Millisecond
)

// EventType names a golden set mutation.
type EventType string

const (
	EventReferenceAdded     EventType = "reference_added"
	EventReferenceValidated EventType = "reference_validated"
)

// Event is one line of the audit log. Reference holds the full state after
// the mutation, so replay is a plain overwrite.
type Event struct {
	Seq       int64     `json:"seq"`
	Type      EventType `json:"type"`
	At        time.Time `json:"at"`
	Reference Reference `json:"reference"`
}

type snapshot struct {
	Version        int                  `json:"version"`
	LastUpdated    time.Time            `json:"last_updated"`
	LastEventSeq   int64                `json:"last_event_seq"`
	ReferenceCount int                  `json:"reference_count"`
	References     map[string]Reference `json:"references"`
}

type state struct {
	refs    map[string]Reference
	lastSeq int64
	updated time.Time
}

func (m *Manager) snapshotPath() string { return filepath.Join(m.root, snapshotFileName) }
func (m *Manager) eventsPath() string   { return filepath.Join(m.root, eventsFileName) }

// load reads the snapshot and replays any events it has not absorbed.
func (m *Manager) load() (state, error) {
	st := state{refs: map[string]Reference{}}

	payload, err := os.ReadFile(m.snapshotPath())
	switch {
	case err == nil:
		var snap snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return state{}, fmt.Errorf("golden: decode snapshot: %w", err)
		}
		if snap.Version != snapshotVersion {
			return state{}, services.Wrap(services.ErrConfiguration, "golden", "load", fmt.Sprintf("unsupported snapshot version %d", snap.Version), nil)
		}
		if snap.References != nil {
			st.refs = snap.References
		}
		st.lastSeq = snap.LastEventSeq
		st.updated = snap.LastUpdated
	case errors.Is(err, os.ErrNotExist):
	default:
		return state{}, fmt.Errorf("golden: read snapshot: %w", err)
	}

	events, err := m.readEvents()
	if err != nil {
		return state{}, err
	}
	replayed := 0
	for _, ev := range events {
		if ev.Seq <= st.lastSeq {
			continue
		}
		st.refs[ev.Reference.ID] = ev.Reference
		st.lastSeq = ev.Seq
		st.updated = ev.At
		replayed++
	}
	if replayed > 0 {
		m.logger.Info("replayed golden set events",
			logging.Int("events", replayed),
			logging.Int64("last_seq", st.lastSeq),
		)
	}
	return st, nil
}

// readEvents decodes the audit log. A torn final line from an interrupted
// append is ignored; corruption anywhere else is an error.
func (m *Manager) readEvents() ([]Event, error) {
	payload, err := os.ReadFile(m.eventsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("golden: read events: %w", err)
	}
	lines := bytes.Split(bytes.TrimRight(payload, "\n"), []byte("\n"))
	events := make([]Event, 0, len(lines))
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			if i == len(lines)-1 {
				logging.WarnWithContext(m.logger, "ignoring torn golden event line", "golden_event_torn",
					logging.Int("line", i+1),
					logging.String(logging.FieldErrorHint, "an earlier write was interrupted"),
					logging.String(logging.FieldImpact, "the interrupted mutation is not applied"),
				)
				break
			}
			return nil, fmt.Errorf("golden: decode event line %d: %w", i+1, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// errUncommitted marks a mutation whose event never reached the log.
var errUncommitted = errors.New("golden: mutation not committed")

func (m *Manager) appendEvent(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("golden: encode event: %w", err)
	}
	if err := m.trimTornTail(); err != nil {
		return err
	}
	f, err := os.OpenFile(m.eventsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("golden: open events: %w", err)
	}
	w := bufio.NewWriter(f)
	_, _ = w.Write(payload)
	_ = w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("golden: append event: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("golden: sync events: %w", err)
	}
	return f.Close()
}

// trimTornTail drops a partial final line so the next append starts clean.
func (m *Manager) trimTornTail() error {
	payload, err := os.ReadFile(m.eventsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("golden: read events: %w", err)
	}
	if len(payload) == 0 || payload[len(payload)-1] == '\n' {
		return nil
	}
	keep := bytes.LastIndexByte(payload, '\n') + 1
	if err := os.Truncate(m.eventsPath(), int64(keep)); err != nil {
		return fmt.Errorf("golden: trim torn event: %w", err)
	}
	return nil
}

func (m *Manager) writeSnapshot(st state) error {
	snap := snapshot{
		Version:        snapshotVersion,
		LastUpdated:    st.updated,
		LastEventSeq:   st.lastSeq,
		ReferenceCount: len(st.refs),
		References:     st.refs,
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("golden: encode snapshot: %w", err)
	}
	tmp := filepath.Join(m.root, fmt.Sprintf(".golden-set-%d.tmp", time.Now().UnixNano()))
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("golden: write snapshot temp: %w", err)
	}
	if err := os.Rename(tmp, m.snapshotPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("golden: rename snapshot: %w", err)
	}
	return nil
}

// mutate runs fn under the writer lease against freshly loaded state and
// persists the returned event.
func (m *Manager) mutate(ctx context.Context, fn func(st *state) (Event, error)) (Event, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()
	locked, err := m.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		return Event{}, services.Wrap(services.ErrTimeout, "golden", "acquire lease", m.lock.Path(), err)
	}
	defer func() {
		if err := m.lock.Unlock(); err != nil {
			logging.WarnWithContext(m.logger, "failed to release golden lease", "golden_unlock_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the stale lock file if no writer is running"),
				logging.String(logging.FieldImpact, "other writers may wait for the lease timeout"),
			)
		}
	}()

	st, err := m.load()
	if err != nil {
		return Event{}, err
	}
	ev, err := fn(&st)
	if err != nil {
		return Event{}, err
	}
	ev.Seq = st.lastSeq + 1
	st.refs[ev.Reference.ID] = ev.Reference
	st.lastSeq = ev.Seq
	st.updated = ev.At

	if err := m.recordEvent(ev); err != nil {
		return Event{}, fmt.Errorf("%w: %w", errUncommitted, err)
	}
	// The event is durable from here; a failed snapshot is repaired by replay.
	if err := m.writeSnapshot(st); err != nil {
		return Event{}, err
	}

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	return ev, nil
}
