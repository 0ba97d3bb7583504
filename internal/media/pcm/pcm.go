// Package pcm holds mono 16-bit audio in memory and the small set of
// edits the narration timeline needs: silence generation, concatenation,
// uniform speedup, trimming and padding. All durations are integer
// milliseconds.
package pcm

import "fmt"

// Buffer is uncompressed mono signed 16-bit audio.
type Buffer struct {
	SampleRate int
	Samples    []int16
}

// NewSilence returns ms milliseconds of silence at the given rate.
func NewSilence(sampleRate int, ms int64) *Buffer {
	n := int(int64(sampleRate) * ms / 1000)
	return &Buffer{SampleRate: sampleRate, Samples: make([]int16, n)}
}

// DurationMS reports the buffer length in milliseconds, rounded down.
func (b *Buffer) DurationMS() int64 {
	if b.SampleRate == 0 {
		return 0
	}
	return int64(len(b.Samples)) * 1000 / int64(b.SampleRate)
}

// ByteSize is the size of the raw sample data in bytes.
func (b *Buffer) ByteSize() int64 {
	return int64(len(b.Samples)) * 2
}

// Append concatenates other onto b. Sample rates must match.
func (b *Buffer) Append(other *Buffer) error {
	if other == nil || len(other.Samples) == 0 {
		return nil
	}
	if b.SampleRate == 0 {
		b.SampleRate = other.SampleRate
	}
	if b.SampleRate != other.SampleRate {
		return fmt.Errorf("pcm: sample rate mismatch %d vs %d", b.SampleRate, other.SampleRate)
	}
	b.Samples = append(b.Samples, other.Samples...)
	return nil
}

// Speedup resamples b to play factor times faster by dropping samples at a
// uniform stride. factor must be >= 1; factor 1 is a no-op. Pitch rises
// with the rate, which is acceptable for the small factors the timeline
// planner produces.
func (b *Buffer) Speedup(factor float64) error {
	if factor < 1 {
		return fmt.Errorf("pcm: speedup factor %g < 1", factor)
	}
	if factor == 1 || len(b.Samples) == 0 {
		return nil
	}
	outLen := int(float64(len(b.Samples)) / factor)
	if outLen < 1 {
		outLen = 1
	}
	out := make([]int16, outLen)
	for i := range out {
		src := int(float64(i) * factor)
		if src >= len(b.Samples) {
			src = len(b.Samples) - 1
		}
		out[i] = b.Samples[src]
	}
	b.Samples = out
	return nil
}

// TrimMS cuts the buffer down to at most ms milliseconds.
func (b *Buffer) TrimMS(ms int64) {
	n := int(int64(b.SampleRate) * ms / 1000)
	if n < 0 {
		n = 0
	}
	if n < len(b.Samples) {
		b.Samples = b.Samples[:n]
	}
}

// PadToMS extends the buffer with trailing silence up to ms milliseconds.
// Buffers already at or past ms are left alone.
func (b *Buffer) PadToMS(ms int64) {
	n := int(int64(b.SampleRate) * ms / 1000)
	for len(b.Samples) < n {
		b.Samples = append(b.Samples, 0)
	}
}

// Slice returns a copy of the samples between fromMS and toMS.
func (b *Buffer) Slice(fromMS, toMS int64) *Buffer {
	lo := int(int64(b.SampleRate) * fromMS / 1000)
	hi := int(int64(b.SampleRate) * toMS / 1000)
	if lo < 0 {
		lo = 0
	}
	if hi > len(b.Samples) {
		hi = len(b.Samples)
	}
	if lo > hi {
		lo = hi
	}
	out := make([]int16, hi-lo)
	copy(out, b.Samples[lo:hi])
	return &Buffer{SampleRate: b.SampleRate, Samples: out}
}
