package ffprobe

import (
	"context"
	"math"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "24/1", "nb_frames": "120", "duration": "5.0"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ],
  "format": {"filename": "clip.mp4", "duration": "5.005", "size": "204800", "format_name": "mov,mp4"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if w, h := result.Resolution(); w != 1280 || h != 720 {
		t.Fatalf("unexpected resolution %dx%d", w, h)
	}
	if result.FrameRate() != 24 {
		t.Fatalf("expected avg frame rate 24, got %v", result.FrameRate())
	}
	if result.DurationSeconds() != 5.005 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	meta := result.Metadata()
	if meta.SizeBytes != 204800 || meta.Codec != "h264" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestFrameRateFallsBackToRealRate(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "30000/1001"}}}
	if got := result.FrameRate(); math.Abs(got-29.97) > 0.01 {
		t.Fatalf("expected ~29.97 fps, got %v", got)
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "bad"}},
		Format:  Format{Duration: "bad", Size: "-1"},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.FrameRate() != 0 {
		t.Fatalf("expected frame rate 0, got %v", result.FrameRate())
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
