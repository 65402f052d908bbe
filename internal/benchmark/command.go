package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vqgate/internal/services"
)

var commandContext = exec.CommandContext

// CommandOutput is the summary line an inference command prints last.
type CommandOutput struct {
	Frames  int     `json:"frames_generated"`
	Seconds float64 `json:"processing_time"`
}

// FramesGenerated implements FrameReporter.
func (o CommandOutput) FramesGenerated() int { return o.Frames }

// ProcessingTime implements FrameReporter.
func (o CommandOutput) ProcessingTime() time.Duration {
	return time.Duration(o.Seconds * float64(time.Second))
}

// CommandInference adapts an external command into an InferenceFunc. Each
// trial runs the command once. When the last non-empty stdout line is a JSON
// object with frames_generated and processing_time the trial reports
// throughput; otherwise the trial reports latency only.
func CommandInference(name string, args ...string) InferenceFunc {
	return func(ctx context.Context) (any, error) {
		cmd := commandContext(ctx, name, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, services.Wrap(services.ErrExternalTool, "benchmark", "command",
				fmt.Sprintf("%s failed: %s", name, lastLine(stderr.String())), err)
		}
		var out CommandOutput
		if err := json.Unmarshal([]byte(lastLine(stdout.String())), &out); err != nil {
			return nil, nil
		}
		return out, nil
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
