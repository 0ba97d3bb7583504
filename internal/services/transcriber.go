package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/dubforge-backend/internal/media/srt"
	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Transcriber turns one chunk of audio into timed cues. Cue timestamps
// are relative to the start of the given file; offsetting into the full
// track is the assembler's job.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]srt.Cue, error)
}

// NewTranscriber selects the provider from TRANSCRIBER_PROVIDER:
// "whisper" (default, any whisper-compatible HTTP endpoint) or "gcp".
func NewTranscriber(log *logger.Logger, settings SettingsService) (Transcriber, error) {
	provider := envutil.GetEnv("TRANSCRIBER_PROVIDER", "whisper", log)
	switch provider {
	case "whisper":
		return NewWhisperTranscriber(log, settings), nil
	case "gcp":
		return NewGCPTranscriber(log)
	default:
		return nil, fmt.Errorf("unknown TRANSCRIBER_PROVIDER %q", provider)
	}
}

type whisperTranscriber struct {
	log      *logger.Logger
	settings SettingsService
	baseURL  string
	model    string
	client   *http.Client
}

// NewWhisperTranscriber talks to any endpoint implementing the
// audio/transcriptions API with verbose_json output.
func NewWhisperTranscriber(log *logger.Logger, settings SettingsService) Transcriber {
	return &whisperTranscriber{
		log:      log.With("service", "WhisperTranscriber"),
		settings: settings,
		baseURL:  envutil.GetEnv("TRANSCRIBER_BASE_URL", "https://api.groq.com/openai/v1", log),
		model:    envutil.GetEnv("TRANSCRIBER_MODEL", "whisper-large-v3", log),
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

type verboseSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type verboseTranscription struct {
	Segments []verboseSegment `json:"segments"`
	Text     string           `json:"text"`
}

func (wt *whisperTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]srt.Cue, error) {
	apiKey, err := wt.settings.Get(ctx, SettingTranscriberAPIKey)
	if err != nil {
		return nil, fmt.Errorf("load transcriber api key: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("transcriber api key not configured")
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio %q: %w", audioPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	_ = mw.WriteField("model", wt.model)
	_ = mw.WriteField("response_format", "verbose_json")
	if language != "" {
		_ = mw.WriteField("language", language)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wt.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := wt.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription API status %d: %s", resp.StatusCode, truncate(string(raw), 500))
	}

	var out verboseTranscription
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	return segmentsToCues(out.Segments), nil
}

func segmentsToCues(segments []verboseSegment) []srt.Cue {
	var cues []srt.Cue
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		cues = append(cues, srt.Cue{
			Index:   len(cues) + 1,
			StartMS: int64(s.Start * 1000),
			EndMS:   int64(s.End * 1000),
			Text:    text,
		})
	}
	return cues
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
