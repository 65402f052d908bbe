// Package deps reports whether the external tools vqgate shells out to are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/samber/lo"

	"vqgate/internal/config"
)

// Requirement is one external binary.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// ToolRequirements lists the binaries named in cfg.
func ToolRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Decodes videos into frames for scoring"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "Reads stream dimensions and frame rate", Optional: true},
	}
}

// CheckBinaries resolves every requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	return lo.Map(requirements, func(req Requirement, _ int) Status {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		if req.Command == "" {
			status.Detail = "command not configured"
			return status
		}
		path, err := exec.LookPath(req.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			return status
		}
		status.Path = path
		status.Available = true
		return status
	})
}

// Missing returns the unavailable requirements that are not optional.
func Missing(statuses []Status) []Status {
	return lo.Filter(statuses, func(s Status, _ int) bool {
		return !s.Available && !s.Optional
	})
}
