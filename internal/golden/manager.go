package golden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"vqgate/internal/config"
	"vqgate/internal/logging"
	"vqgate/internal/media/frames"
	"vqgate/internal/services"
)

const idTimeLayout = "20060102T150405.000000"

// Option configures a Manager.
type Option func(*Manager)

// WithSource sets the decoder used for frame hashing and metadata.
func WithSource(source frames.Source) Option {
	return func(m *Manager) { m.source = source }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.NewComponentLogger(logger, "golden") }
}

// WithFrameInterval sets N for "hash every Nth frame".
func WithFrameInterval(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.frameInterval = n
		}
	}
}

// WithLockTimeout bounds how long a mutation waits for the writer lease.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lockTimeout = d
		}
	}
}

// WithClock overrides the time source used for ids and approval stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is the golden set store rooted at one directory.
type Manager struct {
	root          string
	source        frames.Source
	logger        *slog.Logger
	frameInterval int
	lockTimeout   time.Duration
	now           func() time.Time
	lock          *flock.Flock
	recordEvent   func(Event) error

	writeMu sync.Mutex
	mu      sync.RWMutex
	state   state
}

// New opens (creating if needed) the golden set at root and loads its index.
func New(root string, opts ...Option) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "golden", "open", "root path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Join(root, videosDirName), 0o755); err != nil {
		return nil, fmt.Errorf("golden: ensure root: %w", err)
	}
	m := &Manager{
		root:          root,
		logger:        logging.NewComponentLogger(nil, "golden"),
		frameInterval: 10,
		lockTimeout:   30 * time.Second,
		now:           time.Now,
		lock:          flock.New(filepath.Join(root, lockFileName)),
	}
	m.recordEvent = m.appendEvent
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromConfig opens the store configured in cfg.
func FromConfig(cfg *config.Config, source frames.Source, logger *slog.Logger) (*Manager, error) {
	return New(cfg.Paths.GoldenDir,
		WithSource(source),
		WithLogger(logger),
		WithFrameInterval(cfg.Golden.FrameSampleInterval),
		WithLockTimeout(time.Duration(cfg.Golden.LockTimeoutSeconds)*time.Second),
	)
}

// Root returns the store directory.
func (m *Manager) Root() string { return m.root }

// Reload refreshes the in-memory index from disk.
func (m *Manager) Reload() error {
	st, err := m.load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	return nil
}

// AddReference stores a copy of the artifact and returns its reference id.
func (m *Manager) AddReference(ctx context.Context, req AddRequest) (string, error) {
	req.ScenarioID = strings.TrimSpace(req.ScenarioID)
	req.ModelVersion = strings.TrimSpace(req.ModelVersion)
	if req.ScenarioID == "" || req.ModelVersion == "" {
		return "", services.Wrap(services.ErrValidation, "golden", "add reference", "scenario id and model version are required", nil)
	}
	info, err := os.Stat(req.VideoPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "golden", "add reference", "artifact unreadable", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "golden", "add reference", req.VideoPath+" is a directory", nil)
	}
	if m.source == nil {
		return "", services.Wrap(services.ErrConfiguration, "golden", "add reference", "no frame source configured", nil)
	}

	frameHashes, clip, err := sampledFrameHashes(ctx, m.source, req.VideoPath, m.frameInterval)
	if err != nil {
		return "", fmt.Errorf("golden: add reference: %w", err)
	}

	var stored string
	ev, err := m.mutate(ctx, func(st *state) (Event, error) {
		created := m.now().UTC()
		id := uniqueID(st.refs, referenceID(req.ScenarioID, req.ModelVersion, created))
		rel := filepath.Join(videosDirName, id+strings.ToLower(filepath.Ext(req.VideoPath)))

		digest, size, err := copyAndHash(req.VideoPath, filepath.Join(m.root, rel))
		if err != nil {
			return Event{}, services.Wrap(services.ErrNotFound, "golden", "copy artifact", req.VideoPath, err)
		}
		stored = filepath.Join(m.root, rel)

		meta := clip.Metadata
		if meta.SizeBytes == 0 {
			meta.SizeBytes = size
		}
		ref := Reference{
			ID:                  id,
			ScenarioID:          req.ScenarioID,
			ModelVersion:        req.ModelVersion,
			VideoPath:           rel,
			SourcePath:          req.VideoPath,
			VideoHash:           digest,
			FrameHashes:         frameHashes,
			FrameSampleInterval: m.frameInterval,
			Metadata:            meta,
			MetricScores:        copyScores(req.MetricScores),
			CreatedAt:           created,
			Approval: Approval{
				Approved: req.Approved,
				Approver: strings.TrimSpace(req.Approver),
				Notes:    req.Notes,
			},
		}
		if req.Approved {
			at := created
			ref.Approval.ApprovedAt = &at
		}
		return Event{Type: EventReferenceAdded, At: created, Reference: ref}, nil
	})
	if err != nil {
		if stored != "" && errors.Is(err, errUncommitted) {
			if rmErr := os.Remove(stored); rmErr != nil && !os.IsNotExist(rmErr) {
				logging.WarnWithContext(m.logger, "failed to remove uncommitted golden artifact", "golden_orphan_artifact",
					logging.String("path", stored),
					logging.Error(rmErr),
					logging.String(logging.FieldErrorHint, "delete the file by hand; no reference points at it"),
					logging.String(logging.FieldImpact, "videos directory holds an unindexed file"),
				)
			}
		}
		return "", err
	}

	m.logger.Info("golden reference added",
		logging.String(logging.FieldReferenceID, ev.Reference.ID),
		logging.String(logging.FieldScenario, ev.Reference.ScenarioID),
		logging.String("model_version", ev.Reference.ModelVersion),
		logging.Int("sampled_frames", len(ev.Reference.FrameHashes)),
		logging.Bool("approved", ev.Reference.Approval.Approved),
	)
	return ev.Reference.ID, nil
}

// GetReference returns the reference with the given id.
func (m *Manager) GetReference(id string) (Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.state.refs[id]
	if !ok {
		return Reference{}, fmt.Errorf("golden: reference %q: %w", id, services.ErrNotFound)
	}
	return ref.clone(), nil
}

// GetReferencesByScenario returns a scenario's references, oldest first.
func (m *Manager) GetReferencesByScenario(scenarioID string) []Reference {
	return m.filter(func(r Reference) bool { return r.ScenarioID == scenarioID })
}

// References returns every reference, oldest first.
func (m *Manager) References() []Reference {
	return m.filter(func(Reference) bool { return true })
}

// GetLatestReference returns the most recently created reference matching
// the filters. References created at the same instant are ordered by id, and
// the lexically greatest id wins.
func (m *Manager) GetLatestReference(scenarioID string, opts LatestOptions) (Reference, bool) {
	candidates := m.filter(func(r Reference) bool {
		if r.ScenarioID != scenarioID {
			return false
		}
		if opts.ModelVersion != "" && r.ModelVersion != opts.ModelVersion {
			return false
		}
		if opts.ApprovedOnly && !r.Approval.Approved {
			return false
		}
		return true
	})
	if len(candidates) == 0 {
		return Reference{}, false
	}
	return candidates[len(candidates)-1], true
}

// ArtifactPath resolves the stored copy of a reference.
func (m *Manager) ArtifactPath(ref Reference) string {
	if filepath.IsAbs(ref.VideoPath) {
		return ref.VideoPath
	}
	return filepath.Join(m.root, ref.VideoPath)
}

// ValidateReference records an approval decision. Unknown ids are an error.
func (m *Manager) ValidateReference(ctx context.Context, id, approver string, approved bool, notes string) (Reference, error) {
	ev, err := m.mutate(ctx, func(st *state) (Event, error) {
		ref, ok := st.refs[id]
		if !ok {
			return Event{}, fmt.Errorf("golden: validate reference %q: %w", id, services.ErrNotFound)
		}
		ref = ref.clone()
		at := m.now().UTC()
		ref.Approval.Approved = approved
		ref.Approval.Approver = strings.TrimSpace(approver)
		ref.Approval.ApprovedAt = &at
		if notes != "" {
			ref.Approval.Notes = notes
		}
		return Event{Type: EventReferenceValidated, At: at, Reference: ref}, nil
	})
	if err != nil {
		return Reference{}, err
	}
	m.logger.Info("golden reference reviewed",
		logging.String(logging.FieldReferenceID, id),
		logging.String("approver", ev.Reference.Approval.Approver),
		logging.Bool("approved", approved),
	)
	return ev.Reference.clone(), nil
}

// Events returns the audit log in append order.
func (m *Manager) Events() ([]Event, error) {
	return m.readEvents()
}

func (m *Manager) filter(keep func(Reference) bool) []Reference {
	m.mu.RLock()
	out := make([]Reference, 0, len(m.state.refs))
	for _, ref := range m.state.refs {
		if keep(ref) {
			out = append(out, ref.clone())
		}
	}
	m.mu.RUnlock()
	sortByCreation(out)
	return out
}

func sortByCreation(refs []Reference) {
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.Before(refs[j].CreatedAt)
		}
		return refs[i].ID < refs[j].ID
	})
}

func referenceID(scenarioID, version string, created time.Time) string {
	return sanitize(scenarioID) + "_" + sanitize(version) + "_" + created.Format(idTimeLayout)
}

func uniqueID(existing map[string]Reference, base string) string {
	if _, taken := existing[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	value = strings.Trim(replacer.Replace(value), "-.")
	if value == "" {
		return "unnamed"
	}
	return value
}

func copyScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
