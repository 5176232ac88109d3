// Package ffmpeg wraps the external ffmpeg/ffprobe binaries (FFmpegProcessor
// shape, ffprobeOutput JSON parsing, thumbnail/transcode command builders)
// narrowed to the three fixed outputs this pipeline produces: thumbnail,
// preview clip, and 2×-speed variant.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	probeTimeout     = 30 * time.Second
	thumbnailTimeout = 30 * time.Second
	previewTimeout   = 60 * time.Second

	thumbnailWidth = 640
	previewWidth   = 480
	previewMaxLen  = 5 * time.Second
)

// Tool invokes ffmpeg/ffprobe as subprocesses. The zero value uses "ffmpeg"
// and "ffprobe" from PATH.
type Tool struct {
	FFmpegPath  string
	FFprobePath string
}

func (t Tool) ffmpegBin() string {
	if t.FFmpegPath != "" {
		return t.FFmpegPath
	}
	return "ffmpeg"
}

func (t Tool) ffprobeBin() string {
	if t.FFprobePath != "" {
		return t.FFprobePath
	}
	return "ffprobe"
}

// Probe is the subset of ffprobe's output this pipeline needs: duration and
// whether an audio stream is present.
type Probe struct {
	DurationSeconds float64
	HasAudio        bool
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// ProbeFile inspects localPath for duration and audio-stream presence.
func (t Tool) ProbeFile(ctx context.Context, localPath string) (Probe, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffprobeBin(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-show_entries", "stream=codec_type",
		"-of", "json",
		localPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Probe{}, fmt.Errorf("ffmpeg: probe %s: %w: %s", localPath, err, stderr.String())
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return Probe{}, fmt.Errorf("ffmpeg: parse ffprobe output: %w", err)
	}

	duration, _ := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)

	hasAudio := false
	for _, s := range parsed.Streams {
		if s.CodecType == "audio" {
			hasAudio = true
			break
		}
	}

	return Probe{DurationSeconds: duration, HasAudio: hasAudio}, nil
}

// startOffset returns 1s, or 0 if duration is too short to hold a 1s lead-in.
func startOffset(durationSeconds float64) float64 {
	if durationSeconds > 1 {
		return 1
	}
	return 0
}

// Thumbnail extracts one JPEG frame at t=1s (or t=0), scaled to width 640.
func (t Tool) Thumbnail(ctx context.Context, localPath, outputPath string, durationSeconds float64) error {
	ctx, cancel := context.WithTimeout(ctx, thumbnailTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-ss", formatSeconds(startOffset(durationSeconds)),
		"-i", localPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-vf", fmt.Sprintf("scale=%d:-1", thumbnailWidth),
		outputPath,
	}
	return t.run(ctx, args)
}

// Preview renders a muted clip starting at t=1s (or t=0) of length
// min(5s, duration-1s), scaled to width 480, fastest preset, faststart.
func (t Tool) Preview(ctx context.Context, localPath, outputPath string, durationSeconds float64) error {
	ctx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	start := startOffset(durationSeconds)
	remaining := durationSeconds - start
	length := previewMaxLen.Seconds()
	if remaining > 0 && remaining < length {
		length = remaining
	}

	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", localPath,
		"-t", formatSeconds(length),
		"-vf", fmt.Sprintf("scale=%d:-1", previewWidth),
		"-an",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		outputPath,
	}
	return t.run(ctx, args)
}

// DoubleSpeed runs the 2× transform: video timebase halved, audio retimed
// and re-encoded AAC@128k if present. No timeout; the caller threads ctx
// for cooperative cancellation instead.
func (t Tool) DoubleSpeed(ctx context.Context, localPath, outputPath string, hasAudio bool) error {
	filter := "setpts=0.5*PTS"
	args := []string{"-y", "-i", localPath, "-vf", filter}

	if hasAudio {
		args = append(args, "-filter:a", "atempo=2.0", "-c:a", "aac", "-b:a", "128k")
	} else {
		args = append(args, "-an")
	}

	args = append(args,
		"-crf", "20",
		"-preset", "medium",
		"-threads", "0",
		"-movflags", "+faststart",
		outputPath,
	)
	return t.run(ctx, args)
}

func (t Tool) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegBin(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, stderr.String())
	}
	return nil
}

func formatSeconds(s float64) string {
	if s < 0 {
		s = 0
	}
	return strconv.FormatFloat(s, 'f', 3, 64)
}
