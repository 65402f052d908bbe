// Package frames turns a video artifact into an ordered sequence of 8-bit
// luma frames.
//
// Source is the seam every quality metric and the golden store decode
// through. FFmpegSource is the production implementation: it probes the
// artifact with ffprobe, then streams `ffmpeg -f rawvideo -pix_fmt gray`
// output, downscaled to a bounded width so metric cost stays predictable on
// long or high resolution clips. Tests substitute a SourceFunc that returns
// synthetic clips.
//
// The package also owns the small frame utilities shared by metrics and
// hashing: bilinear resize, sampling every Nth frame, and SHA-256 frame
// digests.
package frames
