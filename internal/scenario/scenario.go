package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"vqgate/internal/metrics"
	"vqgate/internal/services"
)

//go:embed default_scenarios.yaml
var defaultCatalog []byte

// QualityThresholds are per-metric minimum scores. Zero means the metric
// default applies.
type QualityThresholds struct {
	TemporalConsistency    float64 `yaml:"temporal_consistency" json:"temporal_consistency,omitempty"`
	OpticalFlowConsistency float64 `yaml:"optical_flow_consistency" json:"optical_flow_consistency,omitempty"`
	SSIM                   float64 `yaml:"ssim" json:"ssim,omitempty"`
	PerceptualQuality      float64 `yaml:"perceptual_quality" json:"perceptual_quality,omitempty"`
	InstructionFollowing   float64 `yaml:"instruction_following" json:"instruction_following,omitempty"`
	SemanticSimilarity     float64 `yaml:"semantic_similarity" json:"semantic_similarity,omitempty"`
}

// MetricMap returns the non-zero thresholds keyed by metric name.
func (q QualityThresholds) MetricMap() map[string]float64 {
	out := make(map[string]float64, 6)
	set := func(name string, value float64) {
		if value > 0 {
			out[name] = value
		}
	}
	set(metrics.TemporalConsistency, q.TemporalConsistency)
	set(metrics.OpticalFlowConsistency, q.OpticalFlowConsistency)
	set(metrics.SSIM, q.SSIM)
	set(metrics.PerceptualQuality, q.PerceptualQuality)
	set(metrics.InstructionFollowing, q.InstructionFollowing)
	set(metrics.SemanticSimilarity, q.SemanticSimilarity)
	return out
}

// PerformanceThresholds bound benchmark results.
type PerformanceThresholds struct {
	MaxLatencyMS     float64 `yaml:"max_latency_ms" json:"max_latency_ms"`
	MinThroughputFPS float64 `yaml:"min_throughput_fps" json:"min_throughput_fps"`
}

// Scenario is one fixed test condition.
type Scenario struct {
	ID                      string                `yaml:"id" json:"id"`
	Name                    string                `yaml:"name" json:"name"`
	Prompt                  string                `yaml:"prompt" json:"prompt"`
	ExpectedDurationSeconds float64               `yaml:"expected_duration_seconds" json:"expected_duration_seconds"`
	Quality                 QualityThresholds     `yaml:"quality" json:"quality"`
	Performance             PerformanceThresholds `yaml:"performance" json:"performance"`
}

type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Catalog is an immutable set of scenarios keyed by id.
type Catalog struct {
	byID map[string]Scenario
}

// Load returns the embedded catalog merged with the file at path, when set.
// File entries replace embedded scenarios with the same id.
func Load(path string) (*Catalog, error) {
	base, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("scenario: embedded catalog: %w", err)
	}
	catalog := New(base...)

	path = strings.TrimSpace(path)
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "scenario", "load catalog", path, err)
		}
		return nil, fmt.Errorf("scenario: read catalog %q: %w", path, err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario: catalog %q: %w", path, err)
	}
	for _, sc := range extra {
		catalog.byID[sc.ID] = sc
	}
	return catalog, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) ([]Scenario, error) {
	var doc catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "scenario", "parse", "invalid yaml", err)
	}
	seen := make(map[string]struct{}, len(doc.Scenarios))
	for i := range doc.Scenarios {
		sc := &doc.Scenarios[i]
		sc.ID = strings.TrimSpace(sc.ID)
		if err := sc.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[sc.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "scenario", "parse", fmt.Sprintf("duplicate id %q", sc.ID), nil)
		}
		seen[sc.ID] = struct{}{}
	}
	return doc.Scenarios, nil
}

func (s Scenario) validate() error {
	if s.ID == "" {
		return services.Wrap(services.ErrValidation, "scenario", "parse", "scenario id is required", nil)
	}
	for name, value := range s.Quality.MetricMap() {
		if value > 1 {
			return services.Wrap(services.ErrValidation, "scenario", "parse", fmt.Sprintf("%s: %s threshold %.2f exceeds 1", s.ID, name, value), nil)
		}
	}
	if s.Performance.MaxLatencyMS < 0 || s.Performance.MinThroughputFPS < 0 {
		return services.Wrap(services.ErrValidation, "scenario", "parse", s.ID+": performance thresholds must be non-negative", nil)
	}
	return nil
}

// New builds a catalog from explicit scenarios. Later duplicates win.
func New(scenarios ...Scenario) *Catalog {
	c := &Catalog{byID: make(map[string]Scenario, len(scenarios))}
	for _, sc := range scenarios {
		c.byID[sc.ID] = sc
	}
	return c
}

// Lookup returns the scenario with the given id.
func (c *Catalog) Lookup(id string) (Scenario, error) {
	if c != nil {
		if sc, ok := c.byID[id]; ok {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("scenario %q: %w", id, services.ErrNotFound)
}

// IDs returns all scenario ids in sorted order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every scenario sorted by id.
func (c *Catalog) All() []Scenario {
	ids := c.IDs()
	out := make([]Scenario, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.byID[id])
	}
	return out
}
