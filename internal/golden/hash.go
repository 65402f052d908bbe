package golden

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"vqgate/internal/media/frames"
	"vqgate/internal/services"
)

// ComputeVideoHash returns the hex SHA-256 digest of the file at path.
func ComputeVideoHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "golden", "hash", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("golden: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sampledFrameHashes decodes path and hashes every interval-th frame.
func sampledFrameHashes(ctx context.Context, source frames.Source, path string, interval int) ([]string, *frames.Clip, error) {
	clip, err := source.Decode(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	sampled := frames.Sample(clip.Frames, interval)
	hashes := make([]string, len(sampled))
	for i, f := range sampled {
		hashes[i] = frames.Hash(f)
	}
	return hashes, clip, nil
}

// copyAndHash copies src to dst through a temp file, returning the digest of
// the bytes written.
func copyAndHash(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
