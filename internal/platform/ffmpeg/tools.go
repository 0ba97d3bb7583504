// Package ffmpeg wraps the ffmpeg/ffprobe binaries for the handful of
// container operations the pipeline cannot do on raw PCM: pulling audio
// out of video, transcoding to and from compressed formats, and muxing a
// finished narration back onto its video.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/dubforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// REQUIRED BINARIES in worker runtime:
// - ffmpeg
// - ffprobe
//
// Synchronous and deterministic; call from worker activities, never from
// request handlers.
type Tools interface {
	AssertReady(ctx context.Context) error

	// ExtractAudio demuxes and resamples any input into 16 kHz mono PCM16 WAV.
	ExtractAudio(ctx context.Context, inputPath, outPath string) error
	// DecodeToWAV transcodes a compressed audio file into 16 kHz mono PCM16 WAV.
	DecodeToWAV(ctx context.Context, inputPath, outPath string) error
	// EncodeMP3 compresses a WAV file to 128 kbps MP3.
	EncodeMP3(ctx context.Context, wavPath, outPath string) error
	// Merge muxes audioPath onto videoPath, copying the video stream and
	// encoding the audio as AAC. The output stops at the shorter input.
	Merge(ctx context.Context, videoPath, audioPath, outPath string) error
	// ProbeDurationMS reads the container duration.
	ProbeDurationMS(ctx context.Context, path string) (int64, error)

	// WorkDir creates a scratch directory under the tool's work root.
	WorkDir(prefix string) (string, func(), error)
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string
	workRoot    string

	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("service", "FFmpegTools"),
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
		workRoot:       "/tmp/dubforge-media",
		defaultTimeout: 15 * time.Minute,
	}
}

func (t *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{t.ffmpegPath, t.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := os.MkdirAll(t.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (t *tools) WorkDir(prefix string) (string, func(), error) {
	if err := os.MkdirAll(t.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir workRoot: %w", err)
	}
	dir, err := os.MkdirTemp(t.workRoot, prefix+"-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("mkdir scratch dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (t *tools) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, t.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s failed: %w; out=%s", filepath.Base(name), err, string(out))
	}
	return out, nil
}

func (t *tools) ExtractAudio(ctx context.Context, inputPath, outPath string) error {
	if inputPath == "" || outPath == "" {
		return fmt.Errorf("inputPath and outPath required")
	}
	_, err := t.run(ctx, t.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		outPath,
	)
	return err
}

func (t *tools) DecodeToWAV(ctx context.Context, inputPath, outPath string) error {
	// Same invocation as ExtractAudio; -vn is harmless on pure audio.
	return t.ExtractAudio(ctx, inputPath, outPath)
}

func (t *tools) EncodeMP3(ctx context.Context, wavPath, outPath string) error {
	if wavPath == "" || outPath == "" {
		return fmt.Errorf("wavPath and outPath required")
	}
	_, err := t.run(ctx, t.ffmpegPath,
		"-y",
		"-i", wavPath,
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		outPath,
	)
	return err
}

func (t *tools) Merge(ctx context.Context, videoPath, audioPath, outPath string) error {
	if videoPath == "" || audioPath == "" || outPath == "" {
		return fmt.Errorf("videoPath, audioPath and outPath required")
	}
	_, err := t.run(ctx, t.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outPath,
	)
	return err
}

func (t *tools) ProbeDurationMS(ctx context.Context, path string) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("path required")
	}
	out, err := t.run(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(out))
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", raw, err)
	}
	return int64(secs * 1000), nil
}
