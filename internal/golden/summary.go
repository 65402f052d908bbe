package golden

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ScenarioSummary aggregates one scenario's references.
type ScenarioSummary struct {
	Total    int      `json:"total"`
	Approved int      `json:"approved"`
	Versions []string `json:"model_versions"`
	Latest   string   `json:"latest_reference_id"`
}

// Summary is a read-only aggregate of the golden set.
type Summary struct {
	Root           string                     `json:"root"`
	LastUpdated    time.Time                  `json:"last_updated"`
	Total          int                        `json:"total_references"`
	Approved       int                        `json:"approved_references"`
	Pending        int                        `json:"pending_references"`
	ByScenario     map[string]ScenarioSummary `json:"by_scenario"`
	ByModelVersion map[string]int             `json:"by_model_version"`
}

// ExportSummary aggregates counts by scenario, model version, and approval.
func (m *Manager) ExportSummary() Summary {
	m.mu.RLock()
	updated := m.state.updated
	m.mu.RUnlock()

	out := Summary{
		Root:           m.root,
		LastUpdated:    updated,
		ByScenario:     map[string]ScenarioSummary{},
		ByModelVersion: map[string]int{},
	}
	for _, ref := range m.References() {
		out.Total++
		sc := out.ByScenario[ref.ScenarioID]
		sc.Total++
		if ref.Approval.Approved {
			out.Approved++
			sc.Approved++
		}
		if !slices.Contains(sc.Versions, ref.ModelVersion) {
			sc.Versions = append(sc.Versions, ref.ModelVersion)
		}
		sc.Latest = ref.ID
		out.ByScenario[ref.ScenarioID] = sc
		out.ByModelVersion[ref.ModelVersion]++
	}
	out.Pending = out.Total - out.Approved
	return out
}

// ExportMarkdown renders the summary as a Markdown report.
func (m *Manager) ExportMarkdown(w io.Writer) error {
	summary := m.ExportSummary()
	title := cases.Title(language.English)

	var b strings.Builder
	b.WriteString("# Golden Set Summary\n\n")
	if !summary.LastUpdated.IsZero() {
		fmt.Fprintf(&b, "Last updated: %s\n\n", summary.LastUpdated.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Total references: %d\n", summary.Total)
	fmt.Fprintf(&b, "- Approved: %d\n", summary.Approved)
	fmt.Fprintf(&b, "- Pending review: %d\n\n", summary.Pending)

	scenarios := make([]string, 0, len(summary.ByScenario))
	for id := range summary.ByScenario {
		scenarios = append(scenarios, id)
	}
	sort.Strings(scenarios)

	b.WriteString("## Scenarios\n\n")
	b.WriteString("| Scenario | References | Approved | Model versions | Latest |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, id := range scenarios {
		sc := summary.ByScenario[id]
		name := title.String(strings.ReplaceAll(id, "_", " "))
		fmt.Fprintf(&b, "| %s (`%s`) | %d | %d | %s | `%s` |\n", name, id, sc.Total, sc.Approved, strings.Join(sc.Versions, ", "), sc.Latest)
	}

	versions := make([]string, 0, len(summary.ByModelVersion))
	for v := range summary.ByModelVersion {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	b.WriteString("\n## Model Versions\n\n")
	for _, v := range versions {
		fmt.Fprintf(&b, "- %s: %d\n", v, summary.ByModelVersion[v])
	}

	_, err := io.WriteString(w, b.String())
	return err
}
