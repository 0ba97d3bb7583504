package segment

import (
	"math"
	"testing"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
)

// speechThenSilence builds alternating loud tone and silence stretches,
// each stretch lasting stretchMS, for total totalMS of audio.
func speechThenSilence(rate int, totalMS, stretchMS int64) *pcm.Buffer {
	n := int(int64(rate) * totalMS / 1000)
	b := &pcm.Buffer{SampleRate: rate, Samples: make([]int16, n)}
	stretch := int(int64(rate) * stretchMS / 1000)
	for i := range b.Samples {
		if (i/stretch)%2 == 0 {
			b.Samples[i] = int16(12000 * math.Sin(2*math.Pi*300*float64(i)/float64(rate)))
		}
	}
	return b
}

func TestSplitPassthroughWhenWithinBudget(t *testing.T) {
	b := speechThenSilence(16000, 10_000, 1000)
	chunks, err := Split(b, Options{MaxChunkSeconds: 120})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 for audio under budget", len(chunks))
	}
	if chunks[0] != b {
		t.Fatal("within-budget audio should be returned as-is")
	}
}

func TestSplitRespectsDurationBudget(t *testing.T) {
	// 30s of audio, 2s budget, silence every second: expect chunks of
	// at most 2s each.
	b := speechThenSilence(16000, 30_000, 1000)
	chunks, err := Split(b, Options{MaxChunkSeconds: 2})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.DurationMS() > 2000 {
			t.Errorf("chunk %d is %dms, exceeds 2s budget", i, c.DurationMS())
		}
	}
}

func TestSplitRespectsByteBudget(t *testing.T) {
	b := speechThenSilence(16000, 30_000, 1000)
	maxBytes := int64(64 * 1024)
	chunks, err := Split(b, Options{MaxChunkBytes: maxBytes})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i, c := range chunks {
		if c.ByteSize() > maxBytes {
			t.Errorf("chunk %d is %d bytes, exceeds %d", i, c.ByteSize(), maxBytes)
		}
	}
}

func TestSplitConcatenationIsLossless(t *testing.T) {
	b := speechThenSilence(16000, 20_000, 750)
	chunks, err := Split(b, Options{MaxChunkSeconds: 3})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	joined := &pcm.Buffer{SampleRate: b.SampleRate}
	for _, c := range chunks {
		if err := joined.Append(c); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if len(joined.Samples) != len(b.Samples) {
		t.Fatalf("joined %d samples, want %d", len(joined.Samples), len(b.Samples))
	}
	for i := range b.Samples {
		if joined.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs after reassembly", i)
		}
	}
}

func TestSplitCutsAtSilence(t *testing.T) {
	b := speechThenSilence(16000, 20_000, 1000)
	chunks, err := Split(b, Options{MaxChunkSeconds: 3})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	// Each chunk boundary (except the final end) must land in a silent
	// stretch of the source.
	pos := 0
	for _, c := range chunks[:len(chunks)-1] {
		pos += len(c.Samples)
		if b.Samples[pos] != 0 || b.Samples[pos-1] != 0 {
			t.Errorf("cut at sample %d is not inside silence", pos)
		}
	}
}

func TestSplitAllSilenceReturnedUnsplit(t *testing.T) {
	// Digital silence has no speech to protect and no boundary to find;
	// the track goes to the provider in one piece regardless of length.
	b := &pcm.Buffer{SampleRate: 16000, Samples: make([]int16, 16000*200)}
	chunks, err := Split(b, Options{MaxChunkSeconds: 120})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 for silent audio", len(chunks))
	}
	if chunks[0] != b {
		t.Fatal("silent audio should be returned as-is")
	}
}

func TestSplitToneWithoutSilenceUsesHardCuts(t *testing.T) {
	// Pure tone with no silence anywhere still must be split.
	rate := 16000
	n := rate * 10
	b := &pcm.Buffer{SampleRate: rate, Samples: make([]int16, n)}
	for i := range b.Samples {
		b.Samples[i] = int16(12000 * math.Sin(2*math.Pi*300*float64(i)/float64(rate)))
	}
	chunks, err := Split(b, Options{MaxChunkSeconds: 3})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4 (3s+3s+3s+1s)", len(chunks))
	}
	for i, c := range chunks {
		if c.DurationMS() > 3000 {
			t.Errorf("chunk %d is %dms", i, c.DurationMS())
		}
	}
}

func TestSplitEmptyAudio(t *testing.T) {
	if _, err := Split(&pcm.Buffer{SampleRate: 16000}, Options{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestNeedsSplit(t *testing.T) {
	short := speechThenSilence(16000, 5000, 1000)
	if NeedsSplit(short, Options{}) {
		t.Fatal("5s audio should not need splitting under default budgets")
	}
	if !NeedsSplit(short, Options{MaxChunkSeconds: 1}) {
		t.Fatal("5s audio must need splitting under a 1s budget")
	}
	if !NeedsSplit(short, Options{MaxChunkBytes: 1024}) {
		t.Fatal("audio above the byte ceiling must need splitting")
	}
}
