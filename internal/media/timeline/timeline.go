// Package timeline fits synthesized speech clips onto a fixed-length
// audio track. Planning and assembly are separate so the fit can be
// computed and inspected before any samples are touched.
//
// When speech plus the subtitle track's natural pauses overflow the
// target duration, pauses are shrunk first, each keeping a minimum
// breathing gap, and only the residual is absorbed by speeding the
// speech up uniformly.
package timeline

import (
	"fmt"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/media/srt"
)

// MinGapMS is the smallest silence kept between consecutive cues when
// pauses are compressed.
const MinGapMS int64 = 150

// Plan is the resolved layout: one leading gap per cue plus a uniform
// speedup factor for all speech.
type Plan struct {
	// GapsMS[i] is the silence inserted before clip i.
	GapsMS []int64
	// Speedup is applied to every clip; always >= 1.
	Speedup float64
	// TargetMS is the exact duration of the assembled track.
	TargetMS int64
}

// BuildPlan computes the layout for the given cues, the measured duration
// of each cue's synthesized clip, and the target track duration.
func BuildPlan(cues []srt.Cue, speechMS []int64, targetMS int64) (*Plan, error) {
	if len(cues) == 0 {
		return nil, fmt.Errorf("timeline: no cues")
	}
	if len(cues) != len(speechMS) {
		return nil, fmt.Errorf("timeline: %d cues but %d clip durations", len(cues), len(speechMS))
	}
	if targetMS <= 0 {
		return nil, fmt.Errorf("timeline: target duration %dms", targetMS)
	}

	gaps := make([]int64, len(cues))
	gaps[0] = cues[0].StartMS
	for i := 1; i < len(cues); i++ {
		g := cues[i].StartMS - cues[i-1].EndMS
		if g < 0 {
			g = 0
		}
		gaps[i] = g
	}

	var speechTotal, silenceTotal int64
	for i := range cues {
		speechTotal += speechMS[i]
		silenceTotal += gaps[i]
	}

	overflow := speechTotal + silenceTotal - targetMS
	if overflow <= 0 {
		return &Plan{GapsMS: gaps, Speedup: 1, TargetMS: targetMS}, nil
	}

	// Once any correction applies, every gap is floored at MinGapMS, so
	// the shrinkable budget counts each cue's slot at the floor.
	shrinkable := silenceTotal - int64(len(cues))*MinGapMS
	if shrinkable >= overflow {
		ratio := float64(shrinkable-overflow) / float64(shrinkable)
		for i, g := range gaps {
			if shrunk := int64(float64(g) * ratio); shrunk > MinGapMS {
				gaps[i] = shrunk
			} else {
				gaps[i] = MinGapMS
			}
		}
	} else {
		// Silence alone cannot absorb the overflow: every gap collapses
		// to the floor and the speech takes the rest.
		for i := range gaps {
			gaps[i] = MinGapMS
		}
	}

	var newSilence int64
	for _, g := range gaps {
		newSilence += g
	}
	residual := speechTotal + newSilence - targetMS
	if residual <= 0 {
		return &Plan{GapsMS: gaps, Speedup: 1, TargetMS: targetMS}, nil
	}
	if residual >= speechTotal {
		return nil, fmt.Errorf("timeline: %dms of speech cannot fit %dms with %d minimum gaps", speechTotal, targetMS, len(cues))
	}
	speedup := float64(speechTotal) / float64(speechTotal-residual)
	return &Plan{GapsMS: gaps, Speedup: speedup, TargetMS: targetMS}, nil
}

// Assemble lays the clips onto a single track per the plan and pins the
// result to exactly TargetMS, trimming or padding the tail as needed.
func Assemble(plan *Plan, clips []*pcm.Buffer, sampleRate int) (*pcm.Buffer, error) {
	if len(clips) != len(plan.GapsMS) {
		return nil, fmt.Errorf("timeline: %d clips but plan has %d slots", len(clips), len(plan.GapsMS))
	}
	out := &pcm.Buffer{SampleRate: sampleRate}
	for i, clip := range clips {
		if plan.GapsMS[i] > 0 {
			if err := out.Append(pcm.NewSilence(sampleRate, plan.GapsMS[i])); err != nil {
				return nil, err
			}
		}
		if clip == nil || len(clip.Samples) == 0 {
			continue
		}
		c := &pcm.Buffer{SampleRate: clip.SampleRate, Samples: append([]int16(nil), clip.Samples...)}
		if plan.Speedup > 1 {
			if err := c.Speedup(plan.Speedup); err != nil {
				return nil, err
			}
		}
		if err := out.Append(c); err != nil {
			return nil, err
		}
	}
	if out.DurationMS() > plan.TargetMS {
		out.TrimMS(plan.TargetMS)
	} else {
		out.PadToMS(plan.TargetMS)
	}
	return out, nil
}
