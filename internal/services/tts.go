package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Synthesizer renders one piece of text as mono PCM with the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, voice Voice, text string) (*pcm.Buffer, error)
}

// TTSService routes synthesis requests to the engine each voice names.
type TTSService interface {
	Synthesize(ctx context.Context, voiceName, text string) (*pcm.Buffer, error)
	Resolve(voiceName string) (Voice, error)
}

type ttsService struct {
	log     *logger.Logger
	catalog VoiceCatalog
	piper   Synthesizer
	azure   Synthesizer
}

func NewTTSService(log *logger.Logger, catalog VoiceCatalog, piper, azure Synthesizer) TTSService {
	return &ttsService{
		log:     log.With("service", "TTSService"),
		catalog: catalog,
		piper:   piper,
		azure:   azure,
	}
}

func (ts *ttsService) Resolve(voiceName string) (Voice, error) {
	if voiceName == "" {
		return ts.catalog.Default(), nil
	}
	v, ok := ts.catalog.Get(voiceName)
	if !ok {
		return Voice{}, fmt.Errorf("unknown voice %q", voiceName)
	}
	return v, nil
}

func (ts *ttsService) Synthesize(ctx context.Context, voiceName, text string) (*pcm.Buffer, error) {
	voice, err := ts.Resolve(voiceName)
	if err != nil {
		return nil, err
	}
	switch voice.Engine {
	case "piper":
		if ts.piper == nil {
			return nil, fmt.Errorf("piper engine not configured")
		}
		return ts.piper.Synthesize(ctx, voice, text)
	case "azure":
		if ts.azure == nil {
			return nil, fmt.Errorf("azure engine not configured")
		}
		return ts.azure.Synthesize(ctx, voice, text)
	default:
		return nil, fmt.Errorf("voice %q has unknown engine %q", voice.Name, voice.Engine)
	}
}

// VoiceCache memoizes per-voice engine state for the lifetime of the
// process. Loading a local model is expensive; synthesizing a hundred
// cues with the same voice must pay it once.
type VoiceCache[T any] struct {
	mu      sync.Mutex
	entries map[string]*voiceEntry[T]
}

type voiceEntry[T any] struct {
	once  sync.Once
	value T
	err   error
}

func NewVoiceCache[T any]() *VoiceCache[T] {
	return &VoiceCache[T]{entries: make(map[string]*voiceEntry[T])}
}

// GetOrLoad returns the cached value for name, invoking load exactly once
// per name even under concurrent callers. A failed load is not cached so
// a transient error does not poison the voice.
func (c *VoiceCache[T]) GetOrLoad(name string, load func() (T, error)) (T, error) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &voiceEntry[T]{}
		c.entries[name] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = load()
	})
	if e.err != nil {
		c.mu.Lock()
		if c.entries[name] == e {
			delete(c.entries, name)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}
