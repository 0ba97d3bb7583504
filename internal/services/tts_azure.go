package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/ffmpeg"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// azureSynthesizer calls the Cognitive Services TTS REST endpoint. The
// service returns MP3; ffmpeg brings it back to the pipeline's PCM.
type azureSynthesizer struct {
	log      *logger.Logger
	settings SettingsService
	tools    ffmpeg.Tools
	region   string
	client   *http.Client
}

func NewAzureSynthesizer(log *logger.Logger, settings SettingsService, tools ffmpeg.Tools) Synthesizer {
	return &azureSynthesizer{
		log:      log.With("service", "AzureSynthesizer"),
		settings: settings,
		tools:    tools,
		region:   envutil.GetEnv("AZURE_TTS_REGION", "eastus", log),
		client:   &http.Client{Timeout: 3 * time.Minute},
	}
}

func (as *azureSynthesizer) Synthesize(ctx context.Context, voice Voice, text string) (*pcm.Buffer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	apiKey, err := as.settings.Get(ctx, SettingAzureTTSKey)
	if err != nil {
		return nil, fmt.Errorf("load azure tts key: %w", err)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("azure tts key not configured")
	}

	lang := voice.Language
	if lang == "" {
		lang = "en-US"
	}
	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		lang, voice.Name, escapeXML(text),
	)

	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", as.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "audio-24khz-96kbitrate-mono-mp3")

	resp, err := as.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("azure tts status %d: %s", resp.StatusCode, string(body))
	}

	dir, cleanup, err := as.tools.WorkDir("azure-tts")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	mp3Path := filepath.Join(dir, "out.mp3")
	f, err := os.Create(mp3Path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return nil, fmt.Errorf("write azure audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	wavPath := filepath.Join(dir, "out.wav")
	if err := as.tools.DecodeToWAV(ctx, mp3Path, wavPath); err != nil {
		return nil, err
	}
	return pcm.ReadWAVFile(wavPath)
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
