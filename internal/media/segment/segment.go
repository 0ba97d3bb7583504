// Package segment splits long audio into transcription-sized chunks,
// cutting only at detected silence so no speech straddles a boundary.
package segment

import (
	"fmt"
	"math"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
)

// Options tunes silence detection and the chunk budget. Zero values take
// the defaults below.
type Options struct {
	// TopDB marks a frame silent when its RMS is this many dB below the
	// loudest frame.
	TopDB float64
	// FrameLength and HopLength are in samples.
	FrameLength int
	HopLength   int
	// MaxChunkSeconds caps each chunk's duration.
	MaxChunkSeconds float64
	// MaxChunkBytes caps each chunk's payload when re-encoded, measured
	// on the raw PCM data.
	MaxChunkBytes int64
}

const (
	defaultTopDB           = 40.0
	defaultFrameLength     = 2048
	defaultHopLength       = 512
	defaultMaxChunkSeconds = 120.0
	defaultMaxChunkBytes   = 25 * 1024 * 1024
)

func (o Options) withDefaults() Options {
	if o.TopDB == 0 {
		o.TopDB = defaultTopDB
	}
	if o.FrameLength == 0 {
		o.FrameLength = defaultFrameLength
	}
	if o.HopLength == 0 {
		o.HopLength = defaultHopLength
	}
	if o.MaxChunkSeconds == 0 {
		o.MaxChunkSeconds = defaultMaxChunkSeconds
	}
	if o.MaxChunkBytes == 0 {
		o.MaxChunkBytes = defaultMaxChunkBytes
	}
	return o
}

// interval is a half-open sample range [start, end).
type interval struct {
	start, end int
}

// NeedsSplit reports whether the buffer exceeds either chunk budget.
func NeedsSplit(b *pcm.Buffer, opts Options) bool {
	opts = opts.withDefaults()
	if float64(b.DurationMS())/1000 > opts.MaxChunkSeconds {
		return true
	}
	return b.ByteSize() > opts.MaxChunkBytes
}

// Split cuts b into chunks that each fit the duration and byte budgets,
// placing every cut at a silence boundary. The chunks cover the input
// exactly: concatenating them in order reproduces the original samples.
// Audio that already fits is returned as a single chunk.
func Split(b *pcm.Buffer, opts Options) ([]*pcm.Buffer, error) {
	opts = opts.withDefaults()
	if len(b.Samples) == 0 {
		return nil, fmt.Errorf("segment: empty audio")
	}
	if !NeedsSplit(b, opts) {
		return []*pcm.Buffer{b}, nil
	}

	ivs := speechIntervals(b, opts)
	if len(ivs) == 0 {
		// No speech detected anywhere. There is nothing worth cutting
		// around; hand the track to the provider as-is.
		return []*pcm.Buffer{b}, nil
	}

	maxSamples := int(opts.MaxChunkSeconds * float64(b.SampleRate))
	maxByByte := int(opts.MaxChunkBytes / 2)
	if maxByByte < maxSamples {
		maxSamples = maxByByte
	}

	var chunks []*pcm.Buffer
	cur := interval{start: ivs[0].start, end: ivs[0].start}
	flush := func() {
		if cur.end > cur.start {
			chunks = append(chunks, sliceSamples(b, cur.start, cur.end))
		}
	}
	for _, iv := range ivs {
		if cur.end > cur.start && iv.end-cur.start > maxSamples {
			flush()
			cur = interval{start: cur.end, end: cur.end}
		}
		// An interval longer than the whole budget cannot be cut at
		// silence; cut it hard rather than producing an oversized chunk.
		for iv.end-cur.start > maxSamples {
			cur.end = cur.start + maxSamples
			flush()
			cur = interval{start: cur.end, end: cur.end}
		}
		cur.end = iv.end
	}
	flush()
	return chunks, nil
}

func sliceSamples(b *pcm.Buffer, start, end int) *pcm.Buffer {
	out := make([]int16, end-start)
	copy(out, b.Samples[start:end])
	return &pcm.Buffer{SampleRate: b.SampleRate, Samples: out}
}

// speechIntervals detects non-silent regions by framewise RMS energy,
// then extends each region to touch its neighbours so the intervals
// tile the buffer with no gaps. Cut points therefore always fall inside
// silence while no sample is dropped.
func speechIntervals(b *pcm.Buffer, opts Options) []interval {
	frames := frameRMSdB(b.Samples, opts.FrameLength, opts.HopLength)
	if len(frames) == 0 {
		return nil
	}
	peak := math.Inf(-1)
	for _, db := range frames {
		if db > peak {
			peak = db
		}
	}
	threshold := peak - opts.TopDB

	var raw []interval
	inSpeech := false
	start := 0
	for i, db := range frames {
		loud := db > threshold
		if loud && !inSpeech {
			inSpeech = true
			start = i * opts.HopLength
		} else if !loud && inSpeech {
			inSpeech = false
			raw = append(raw, interval{start: start, end: min(i*opts.HopLength+opts.FrameLength, len(b.Samples))})
		}
	}
	if inSpeech {
		raw = append(raw, interval{start: start, end: len(b.Samples)})
	}
	if len(raw) == 0 {
		return nil
	}

	// Attach each silent gap to the interval that follows it, and the
	// trailing silence to the last interval.
	out := make([]interval, len(raw))
	copy(out, raw)
	out[0].start = 0
	for i := 1; i < len(out); i++ {
		out[i].start = out[i-1].end
	}
	out[len(out)-1].end = len(b.Samples)
	return out
}

// frameRMSdB computes per-frame RMS energy in dBFS.
func frameRMSdB(samples []int16, frameLen, hop int) []float64 {
	if len(samples) < frameLen {
		frameLen = len(samples)
	}
	if frameLen == 0 || hop == 0 {
		return nil
	}
	n := (len(samples)-frameLen)/hop + 1
	out := make([]float64, 0, n)
	for i := 0; i+frameLen <= len(samples); i += hop {
		var sum float64
		for _, s := range samples[i : i+frameLen] {
			v := float64(s) / 32768
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(frameLen))
		if rms == 0 {
			out = append(out, math.Inf(-1))
			continue
		}
		out = append(out, 20*math.Log10(rms))
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
