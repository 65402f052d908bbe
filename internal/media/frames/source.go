package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"vqgate/internal/config"
	"vqgate/internal/media/ffprobe"
	"vqgate/internal/services"
)

var commandContext = exec.CommandContext

// Source decodes an artifact path into a clip.
type Source interface {
	Decode(ctx context.Context, path string) (*Clip, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, path string) (*Clip, error)

// Decode calls f.
func (f SourceFunc) Decode(ctx context.Context, path string) (*Clip, error) {
	return f(ctx, path)
}

// Option configures an FFmpegSource.
type Option func(*FFmpegSource)

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpegBinary, ffprobeBinary string) Option {
	return func(s *FFmpegSource) {
		if strings.TrimSpace(ffmpegBinary) != "" {
			s.ffmpeg = ffmpegBinary
		}
		if strings.TrimSpace(ffprobeBinary) != "" {
			s.ffprobe = ffprobeBinary
		}
	}
}

// WithMaxWidth bounds the decoded frame width. Zero keeps native resolution.
func WithMaxWidth(width int) Option {
	return func(s *FFmpegSource) {
		if width >= 0 {
			s.maxWidth = width
		}
	}
}

// WithMaxFrames bounds the number of decoded frames. Zero decodes everything.
func WithMaxFrames(count int) Option {
	return func(s *FFmpegSource) {
		if count >= 0 {
			s.maxFrames = count
		}
	}
}

// FFmpegSource decodes artifacts by piping ffmpeg rawvideo output.
type FFmpegSource struct {
	ffmpeg    string
	ffprobe   string
	maxWidth  int
	maxFrames int
	probe     func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewFFmpegSource constructs a decoder using defaults.
func NewFFmpegSource(opts ...Option) *FFmpegSource {
	s := &FFmpegSource{
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
		probe:   ffprobe.Inspect,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig builds a decoder from the tools section.
func FromConfig(cfg *config.Config) *FFmpegSource {
	if cfg == nil {
		return NewFFmpegSource()
	}
	return NewFFmpegSource(
		WithBinaries(cfg.Tools.FFmpeg, cfg.Tools.FFprobe),
		WithMaxWidth(cfg.Tools.DecodeMaxWidth),
		WithMaxFrames(cfg.Tools.DecodeMaxFrames),
	)
}

// Decode probes and decodes path into grayscale frames.
func (s *FFmpegSource) Decode(ctx context.Context, path string) (*Clip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "frames", "decode", "artifact unreadable", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "frames", "decode", path+" is a directory", nil)
	}

	probe, err := s.probe(ctx, s.ffprobe, path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frames", "probe", "", err)
	}
	srcWidth, srcHeight := probe.Resolution()
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, services.Wrap(services.ErrValidation, "frames", "probe", "no video stream in "+path, nil)
	}
	width, height := targetSize(srcWidth, srcHeight, s.maxWidth)

	args := []string{
		"-v", "error", "-nostdin",
		"-i", path,
		"-an", "-sn",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", "gray",
		"-f", "rawvideo",
	}
	if s.maxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(s.maxFrames))
	}
	args = append(args, "pipe:1")

	cmd := commandContext(ctx, s.ffmpeg, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("frames: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frames", "decode", "start ffmpeg", err)
	}

	decoded, readErr := readFrames(stdout, width, height, s.maxFrames)
	if readErr != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, fmt.Errorf("frames: read rawvideo: %w", readErr)
	}
	if waitErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frames", "decode", strings.TrimSpace(stderr.String()), waitErr)
	}

	return &Clip{
		Path:      path,
		Frames:    decoded,
		Width:     width,
		Height:    height,
		FrameRate: probe.FrameRate(),
		Metadata:  probe.Metadata(),
	}, nil
}

// readFrames splits a rawvideo gray stream into frames. A trailing partial
// frame is dropped.
func readFrames(r io.Reader, width, height, limit int) ([]*image.Gray, error) {
	size := width * height
	if size <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	var out []*image.Gray
	for limit <= 0 || len(out) < limit {
		frame := NewGray(width, height)
		_, err := io.ReadFull(r, frame.Pix)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, frame)
	}
	// Drain so ffmpeg is not blocked writing when a frame limit stops us early.
	_, _ = io.Copy(io.Discard, r)
	return out, nil
}

// targetSize keeps the aspect ratio while capping the width. Dimensions are
// kept even for scaler compatibility.
func targetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	scaled := int(float64(height)*float64(maxWidth)/float64(width) + 0.5)
	w := maxWidth &^ 1
	h := scaled &^ 1
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h
}

var _ Source = (*FFmpegSource)(nil)
