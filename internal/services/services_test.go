package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func TestMediaKindForFilename(t *testing.T) {
	cases := []struct {
		name string
		want domain.MediaKind
		ok   bool
	}{
		{"clip.mp4", domain.MediaVideo, true},
		{"clip.MOV", domain.MediaVideo, true},
		{"track.mp3", domain.MediaAudio, true},
		{"track.flac", domain.MediaAudio, true},
		{"notes.txt", "", false},
		{"noext", "", false},
	}
	for _, tc := range cases {
		kind, err := MediaKindForFilename(tc.name)
		if tc.ok && err != nil {
			t.Fatalf("MediaKindForFilename(%q): %v", tc.name, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("MediaKindForFilename(%q): want validation error, got %v", tc.name, err)
			}
			continue
		}
		if kind != tc.want {
			t.Fatalf("MediaKindForFilename(%q) = %q, want %q", tc.name, kind, tc.want)
		}
	}
}

func TestVoiceCacheLoadsOnce(t *testing.T) {
	cache := NewVoiceCache[string]()
	var loads int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrLoad("lessac", func() (string, error) {
				atomic.AddInt32(&loads, 1)
				return "model", nil
			})
			if err != nil || v != "model" {
				t.Errorf("GetOrLoad: v=%q err=%v", v, err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("load invoked %d times, want 1", got)
	}
}

func TestVoiceCacheRetriesFailedLoad(t *testing.T) {
	cache := NewVoiceCache[string]()
	calls := 0

	_, err := cache.GetOrLoad("ryan", func() (string, error) {
		calls++
		return "", fmt.Errorf("model missing")
	})
	if err == nil {
		t.Fatal("expected load error")
	}

	v, err := cache.GetOrLoad("ryan", func() (string, error) {
		calls++
		return "model", nil
	})
	if err != nil || v != "model" {
		t.Fatalf("second GetOrLoad: v=%q err=%v", v, err)
	}
	if calls != 2 {
		t.Fatalf("load invoked %d times, want 2", calls)
	}
}

type stubCatalog struct {
	voices map[string]Voice
	def    Voice
}

func (s *stubCatalog) List() []Voice {
	out := make([]Voice, 0, len(s.voices))
	for _, v := range s.voices {
		out = append(out, v)
	}
	return out
}

func (s *stubCatalog) Get(name string) (Voice, bool) {
	v, ok := s.voices[name]
	return v, ok
}

func (s *stubCatalog) Default() Voice { return s.def }

func TestTTSResolve(t *testing.T) {
	def := Voice{Name: "lessac", Engine: "piper", Model: "/models/lessac.onnx"}
	catalog := &stubCatalog{
		voices: map[string]Voice{"lessac": def, "aria": {Name: "aria", Engine: "azure", Model: "en-US-AriaNeural"}},
		def:    def,
	}
	ts := NewTTSService(testLogger(t), catalog, nil, nil)

	v, err := ts.Resolve("")
	if err != nil {
		t.Fatalf("Resolve default: %v", err)
	}
	if v.Name != "lessac" {
		t.Fatalf("Resolve default = %q, want lessac", v.Name)
	}

	if v, err = ts.Resolve("aria"); err != nil || v.Engine != "azure" {
		t.Fatalf("Resolve aria: v=%+v err=%v", v, err)
	}

	if _, err = ts.Resolve("nobody"); err == nil {
		t.Fatal("Resolve unknown voice: expected error")
	}
}

type memSettingRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func (r *memSettingRepo) Get(_ dbctx.Context, key string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return nil, nil
	}
	return &domain.Setting{Key: key, Value: v}, nil
}

func (r *memSettingRepo) Upsert(_ dbctx.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values == nil {
		r.values = make(map[string]string)
	}
	r.values[key] = value
	return nil
}

func (r *memSettingRepo) Delete(_ dbctx.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := &memSettingRepo{}
	svc, err := NewSettingsService(testLogger(t), repo, "unit-test-master-key")
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}
	ctx := context.Background()

	if err := svc.Set(ctx, SettingTranscriberAPIKey, "sk-secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Stored form must not leak the plaintext.
	repo.mu.Lock()
	stored := repo.values[SettingTranscriberAPIKey]
	repo.mu.Unlock()
	if stored == "" || stored == "sk-secret" {
		t.Fatalf("stored value not sealed: %q", stored)
	}

	got, err := svc.Get(ctx, SettingTranscriberAPIKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-secret" {
		t.Fatalf("Get = %q, want sk-secret", got)
	}

	if got, err = svc.Get(ctx, SettingAzureTTSKey); err != nil || got != "" {
		t.Fatalf("Get missing key: got=%q err=%v", got, err)
	}

	if err := svc.Delete(ctx, SettingTranscriberAPIKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := svc.Get(ctx, SettingTranscriberAPIKey); got != "" {
		t.Fatalf("deleted key still resolves: %q", got)
	}
}

func TestSettingsRejectsTamperedValue(t *testing.T) {
	repo := &memSettingRepo{}
	svc, err := NewSettingsService(testLogger(t), repo, "unit-test-master-key")
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}
	ctx := context.Background()

	if err := svc.Set(ctx, SettingAzureTTSKey, "azure-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	repo.mu.Lock()
	repo.values[SettingAzureTTSKey] = "bm90LWEtcmVhbC1jaXBoZXJ0ZXh0LXZhbHVlLWF0LWFsbA=="
	repo.mu.Unlock()

	if _, err := svc.Get(ctx, SettingAzureTTSKey); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
}
