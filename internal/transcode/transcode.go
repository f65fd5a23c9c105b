// Package transcode drives ffmpeg to produce one HLS rendition per run.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"hlsmill/internal/hls"
	"hlsmill/internal/ladder"
)

const audioBitrate = "128k"

// Job describes one rendition encode: the local source file, the
// directory receiving the playlist and segments, and the target rung.
type Job struct {
	InputPath       string
	OutputDir       string
	Rendition       ladder.Rendition
	SegmentPadWidth int
}

// FFmpeg encodes jobs by shelling out to an ffmpeg binary.
type FFmpeg struct {
	Binary string
}

// NewFFmpeg returns an encoder using the given binary, or "ffmpeg" from
// PATH when empty.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary}
}

// Available reports whether the configured binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Binary)
	return err == nil
}

// Encode runs ffmpeg for one rendition. The job's output directory must
// already exist; on success it contains the variant playlist and all
// segments for the rendition.
func (f *FFmpeg) Encode(ctx context.Context, job Job) error {
	args := Args(job)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", job.Rendition.Name, err, tail(stderr.String(), 4))
	}
	return nil
}

// Args builds the ffmpeg argument list for one rendition encode. Video is
// x264 with a keyframe locked to every 48 frames so segment boundaries
// line up across renditions; audio is stereo AAC at a fixed rate.
func Args(job Job) []string {
	r := job.Rendition
	playlist := filepath.Join(job.OutputDir, hls.PlaylistName(r.Name))
	segments := filepath.Join(job.OutputDir, hls.SegmentPattern(r.Name, job.SegmentPadWidth))

	return []string{
		"-hide_banner",
		"-y",
		"-i", job.InputPath,
		"-vf", fmt.Sprintf("scale=w=%d:h=%d", r.Width, r.Height),
		"-c:v", "libx264",
		"-profile:v", "main",
		"-b:v", r.VideoBitrate(),
		"-maxrate", r.MaxRate(),
		"-bufsize", r.BufSize(),
		"-g", "48",
		"-keyint_min", "48",
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-ac", "2",
		"-ar", "48000",
		"-b:a", audioBitrate,
		"-f", "hls",
		"-hls_time", strconv.Itoa(hls.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segments,
		playlist,
	}
}

func tail(s string, lines int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "no stderr output"
	}
	parts := strings.Split(s, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, " | ")
}
