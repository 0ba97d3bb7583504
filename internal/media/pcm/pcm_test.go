package pcm

import (
	"bytes"
	"math"
	"testing"
)

func sine(rate int, ms int64, freq float64) *Buffer {
	n := int(int64(rate) * ms / 1000)
	b := &Buffer{SampleRate: rate, Samples: make([]int16, n)}
	for i := range b.Samples {
		b.Samples[i] = int16(10000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return b
}

func TestSilenceDuration(t *testing.T) {
	s := NewSilence(16000, 1500)
	if got := s.DurationMS(); got != 1500 {
		t.Fatalf("DurationMS = %d, want 1500", got)
	}
	if len(s.Samples) != 24000 {
		t.Fatalf("samples = %d, want 24000", len(s.Samples))
	}
	for _, v := range s.Samples {
		if v != 0 {
			t.Fatal("silence must be all zero samples")
		}
	}
}

func TestAppendRateMismatch(t *testing.T) {
	a := NewSilence(16000, 100)
	b := NewSilence(22050, 100)
	if err := a.Append(b); err == nil {
		t.Fatal("expected error on sample rate mismatch")
	}
}

func TestAppendConcatenates(t *testing.T) {
	a := sine(16000, 200, 440)
	b := sine(16000, 300, 220)
	wantLen := len(a.Samples) + len(b.Samples)
	if err := a.Append(b); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(a.Samples) != wantLen {
		t.Fatalf("len = %d, want %d", len(a.Samples), wantLen)
	}
	if a.DurationMS() != 500 {
		t.Fatalf("duration = %d, want 500", a.DurationMS())
	}
}

func TestSpeedupShortens(t *testing.T) {
	b := sine(16000, 1000, 440)
	if err := b.Speedup(2.0); err != nil {
		t.Fatalf("Speedup: %v", err)
	}
	if got := b.DurationMS(); got < 495 || got > 505 {
		t.Fatalf("duration after 2x speedup = %dms, want ~500ms", got)
	}
}

func TestSpeedupRejectsSlowdown(t *testing.T) {
	b := sine(16000, 100, 440)
	if err := b.Speedup(0.5); err == nil {
		t.Fatal("expected error for factor < 1")
	}
}

func TestTrimAndPad(t *testing.T) {
	b := sine(16000, 1000, 440)
	b.TrimMS(400)
	if got := b.DurationMS(); got != 400 {
		t.Fatalf("after trim: %dms, want 400", got)
	}
	b.PadToMS(900)
	if got := b.DurationMS(); got != 900 {
		t.Fatalf("after pad: %dms, want 900", got)
	}
	// Padding never truncates.
	b.PadToMS(100)
	if got := b.DurationMS(); got != 900 {
		t.Fatalf("pad below current length changed duration to %dms", got)
	}
	tail := b.Samples[len(b.Samples)-10:]
	for _, v := range tail {
		if v != 0 {
			t.Fatal("padding must be silence")
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	orig := sine(16000, 730, 440)
	var buf bytes.Buffer
	if err := EncodeWAV(&buf, orig); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	got, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got.SampleRate != orig.SampleRate {
		t.Fatalf("rate = %d, want %d", got.SampleRate, orig.SampleRate)
	}
	if len(got.Samples) != len(orig.Samples) {
		t.Fatalf("len = %d, want %d", len(got.Samples), len(orig.Samples))
	}
	for i := range got.Samples {
		if got.Samples[i] != orig.Samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.Samples[i], orig.Samples[i])
		}
	}
}

func TestDecodeStereoDownmix(t *testing.T) {
	// Hand-build a 2-channel wav with L=1000, R=3000 for every frame.
	var buf bytes.Buffer
	const frames = 100
	buf.WriteString("RIFF")
	writeU32 := func(v uint32) { buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}) }
	writeU16 := func(v uint16) { buf.Write([]byte{byte(v), byte(v >> 8)}) }
	writeU32(36 + frames*4)
	buf.WriteString("WAVEfmt ")
	writeU32(16)
	writeU16(1)
	writeU16(2)
	writeU32(16000)
	writeU32(16000 * 4)
	writeU16(4)
	writeU16(16)
	buf.WriteString("data")
	writeU32(frames * 4)
	for i := 0; i < frames; i++ {
		writeU16(1000)
		writeU16(3000)
	}
	got, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(got.Samples) != frames {
		t.Fatalf("frames = %d, want %d", len(got.Samples), frames)
	}
	for _, v := range got.Samples {
		if v != 2000 {
			t.Fatalf("downmixed sample = %d, want 2000", v)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}
