package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/dubforge-backend/internal/media/srt"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// gcpTranscriber runs chunks through Cloud Speech-to-Text with word time
// offsets, then folds the words back into cue-sized lines.
type gcpTranscriber struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

// maxCueSpanMS bounds how much audio a single assembled cue may cover.
const maxCueSpanMS int64 = 10_000

func NewGCPTranscriber(log *logger.Logger) (Transcriber, error) {
	slog := log.With("service", "GCPTranscriber")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	ctx := context.Background()
	var (
		c   *speech.Client
		err error
	)
	if creds != "" {
		c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
	} else {
		c, err = speech.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &gcpTranscriber{log: slog, client: c, maxRetries: 4}, nil
}

func (gt *gcpTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]srt.Cue, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio %q: %w", audioPath, err)
	}
	if len(audio) == 0 {
		return nil, nil
	}
	if language == "" {
		language = "en-US"
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               language,
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := gt.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := gt.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}
	return wordsToCues(resp), nil
}

func (gt *gcpTranscriber) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= gt.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == gt.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

// wordsToCues groups word offsets into cues, breaking at sentence-ending
// punctuation or when the running cue spans too much audio.
func wordsToCues(resp *speechpb.LongRunningRecognizeResponse) []srt.Cue {
	var cues []srt.Cue
	var (
		words   []string
		startMS int64
		endMS   int64
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		cues = append(cues, srt.Cue{
			Index:   len(cues) + 1,
			StartMS: startMS,
			EndMS:   endMS,
			Text:    strings.Join(words, " "),
		})
		words = nil
	}

	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		for _, w := range r.GetAlternatives()[0].GetWords() {
			ws := w.GetStartTime().AsDuration().Milliseconds()
			we := w.GetEndTime().AsDuration().Milliseconds()
			if len(words) == 0 {
				startMS = ws
			}
			endMS = we
			words = append(words, w.GetWord())

			text := w.GetWord()
			endsSentence := strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!")
			if endsSentence || endMS-startMS >= maxCueSpanMS {
				flush()
			}
		}
	}
	flush()
	return cues
}
