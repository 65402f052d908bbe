package golden

import (
	"context"
	"fmt"

	"vqgate/internal/services"
)

// ComparisonLevel selects how two artifacts are compared.
type ComparisonLevel string

const (
	// LevelHash compares whole-artifact digests for exact equality.
	LevelHash ComparisonLevel = "hash"
	// LevelFrame compares sampled frame digests pairwise.
	LevelFrame ComparisonLevel = "frame"
)

// VideoComparison reports the outcome of CompareVideos.
type VideoComparison struct {
	Level      ComparisonLevel `json:"level"`
	Match      bool            `json:"match"`
	Similarity float64         `json:"similarity"`
	Reason     string          `json:"reason,omitempty"`
	HashA      string          `json:"hash_a,omitempty"`
	HashB      string          `json:"hash_b,omitempty"`
	FramesA    int             `json:"sampled_frames_a,omitempty"`
	FramesB    int             `json:"sampled_frames_b,omitempty"`
	Matching   int             `json:"matching_frames,omitempty"`
}

// CompareVideos compares two artifact paths at the requested level.
func (m *Manager) CompareVideos(ctx context.Context, pathA, pathB string, level ComparisonLevel) (VideoComparison, error) {
	switch level {
	case LevelHash, "":
		hashA, err := ComputeVideoHash(pathA)
		if err != nil {
			return VideoComparison{}, err
		}
		hashB, err := ComputeVideoHash(pathB)
		if err != nil {
			return VideoComparison{}, err
		}
		out := VideoComparison{Level: LevelHash, HashA: hashA, HashB: hashB, Match: hashA == hashB}
		if out.Match {
			out.Similarity = 1
		} else {
			out.Reason = "content hashes differ"
		}
		return out, nil

	case LevelFrame:
		if m.source == nil {
			return VideoComparison{}, services.Wrap(services.ErrConfiguration, "golden", "compare", "no frame source configured", nil)
		}
		hashesA, _, err := sampledFrameHashes(ctx, m.source, pathA, m.frameInterval)
		if err != nil {
			return VideoComparison{}, fmt.Errorf("golden: compare: %w", err)
		}
		hashesB, _, err := sampledFrameHashes(ctx, m.source, pathB, m.frameInterval)
		if err != nil {
			return VideoComparison{}, fmt.Errorf("golden: compare: %w", err)
		}
		return compareFrameHashes(hashesA, hashesB), nil

	default:
		return VideoComparison{}, services.Wrap(services.ErrValidation, "golden", "compare", fmt.Sprintf("unknown level %q", level), nil)
	}
}

func compareFrameHashes(a, b []string) VideoComparison {
	out := VideoComparison{Level: LevelFrame, FramesA: len(a), FramesB: len(b)}
	if len(a) != len(b) {
		out.Reason = fmt.Sprintf("sampled frame count mismatch: %d vs %d", len(a), len(b))
		return out
	}
	if len(a) == 0 {
		out.Reason = "no frames sampled"
		return out
	}
	for i := range a {
		if a[i] == b[i] {
			out.Matching++
		}
	}
	out.Similarity = float64(out.Matching) / float64(len(a))
	out.Match = out.Matching == len(a)
	return out
}
