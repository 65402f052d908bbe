package golden

import (
	"time"

	"vqgate/internal/media/ffprobe"
)

// Approval records the expert review state of a reference.
type Approval struct {
	Approved   bool       `json:"approved"`
	Approver   string     `json:"approver,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Reference is one stored artifact with its integrity data.
type Reference struct {
	ID                  string             `json:"reference_id"`
	ScenarioID          string             `json:"scenario_id"`
	ModelVersion        string             `json:"model_version"`
	VideoPath           string             `json:"video_path"`
	SourcePath          string             `json:"source_path"`
	VideoHash           string             `json:"video_hash"`
	FrameHashes         []string           `json:"frame_hashes"`
	FrameSampleInterval int                `json:"frame_sample_interval"`
	Metadata            ffprobe.Metadata   `json:"metadata"`
	MetricScores        map[string]float64 `json:"metric_scores"`
	CreatedAt           time.Time          `json:"created_at"`
	Approval            Approval           `json:"approval"`
}

func (r Reference) clone() Reference {
	out := r
	out.FrameHashes = append([]string(nil), r.FrameHashes...)
	if r.MetricScores != nil {
		out.MetricScores = make(map[string]float64, len(r.MetricScores))
		for k, v := range r.MetricScores {
			out.MetricScores[k] = v
		}
	}
	if r.Approval.ApprovedAt != nil {
		at := *r.Approval.ApprovedAt
		out.Approval.ApprovedAt = &at
	}
	return out
}

// AddRequest describes a new reference.
type AddRequest struct {
	ScenarioID   string
	VideoPath    string
	ModelVersion string
	// MetricScores are recorded verbatim; the store never recomputes them.
	MetricScores map[string]float64
	Approved     bool
	Approver     string
	Notes        string
}

// LatestOptions filters GetLatestReference candidates.
type LatestOptions struct {
	ModelVersion string
	ApprovedOnly bool
}
