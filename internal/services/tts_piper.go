package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// piperSynthesizer shells out to the piper binary. The model file is
// validated once per voice through the cache; piper itself loads the
// model per invocation but a bad path fails fast instead of per cue.
type piperSynthesizer struct {
	log       *logger.Logger
	binary    string
	workRoot  string
	modelPath *VoiceCache[string]
	timeout   time.Duration
}

func NewPiperSynthesizer(log *logger.Logger) Synthesizer {
	return &piperSynthesizer{
		log:       log.With("service", "PiperSynthesizer"),
		binary:    envutil.GetEnv("PIPER_BINARY", "piper", log),
		workRoot:  "/tmp/dubforge-tts",
		modelPath: NewVoiceCache[string](),
		timeout:   5 * time.Minute,
	}
}

func (ps *piperSynthesizer) Synthesize(ctx context.Context, voice Voice, text string) (*pcm.Buffer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	model, err := ps.modelPath.GetOrLoad(voice.Name, func() (string, error) {
		if _, err := os.Stat(voice.Model); err != nil {
			return "", fmt.Errorf("voice model %q: %w", voice.Model, err)
		}
		return voice.Model, nil
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(ps.workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir workRoot: %w", err)
	}
	outDir, err := os.MkdirTemp(ps.workRoot, "piper-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)
	outPath := filepath.Join(outDir, "out.wav")

	ctx, cancel := context.WithTimeout(ctx, ps.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ps.binary,
		"--model", model,
		"--output_file", outPath,
	)
	cmd.Stdin = strings.NewReader(text)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("piper failed: %w; out=%s", err, string(out))
	}

	buf, err := pcm.ReadWAVFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read piper output: %w", err)
	}
	return buf, nil
}
