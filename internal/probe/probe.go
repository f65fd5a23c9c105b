// Package probe inspects source media with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Result carries the source properties the planner needs.
type Result struct {
	DurationSeconds float64
	Width           int
	Height          int
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Available reports whether the ffprobe binary can be found.
func Available(binary string) bool {
	if binary == "" {
		binary = "ffprobe"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Inspect runs ffprobe against the file at path and returns its duration
// and video dimensions.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if binary == "" {
		binary = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return parse(output)
}

func parse(output []byte) (Result, error) {
	var decoded ffprobeOutput
	if err := json.Unmarshal(output, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var video *ffprobeStream
	for i := range decoded.Streams {
		s := &decoded.Streams[i]
		if strings.EqualFold(s.CodecType, "video") && s.Width > 0 && s.Height > 0 {
			video = s
			break
		}
	}
	if video == nil {
		return Result{}, errors.New("no video stream found")
	}

	duration, err := parseDuration(decoded.Format.Duration)
	if err != nil {
		// Some containers only report duration per stream.
		duration, err = parseDuration(video.Duration)
	}
	if err != nil {
		return Result{}, fmt.Errorf("source duration: %w", err)
	}

	return Result{
		DurationSeconds: duration,
		Width:           video.Width,
		Height:          video.Height,
	}, nil
}

func parseDuration(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("missing")
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("not positive: %v", seconds)
	}
	return seconds, nil
}
