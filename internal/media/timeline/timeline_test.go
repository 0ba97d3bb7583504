package timeline

import (
	"testing"

	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/media/srt"
)

func cuesAt(times ...int64) []srt.Cue {
	var cues []srt.Cue
	for i := 0; i+1 < len(times); i += 2 {
		cues = append(cues, srt.Cue{Index: len(cues) + 1, StartMS: times[i], EndMS: times[i+1], Text: "x"})
	}
	return cues
}

func TestPlanPadOnly(t *testing.T) {
	// Speech plus gaps fits comfortably; nothing is shrunk or sped up.
	cues := cuesAt(1000, 3000, 5000, 7000)
	plan, err := BuildPlan(cues, []int64{1500, 1500}, 20_000)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Speedup != 1 {
		t.Fatalf("speedup = %g, want 1", plan.Speedup)
	}
	if plan.GapsMS[0] != 1000 || plan.GapsMS[1] != 2000 {
		t.Fatalf("gaps = %v, want [1000 2000]", plan.GapsMS)
	}
}

func TestPlanShrinkOnly(t *testing.T) {
	// Overflow small enough for silence compression alone: 4000 speech +
	// 6000 silence into 8000 target, overflow 2000, shrinkable 5700.
	cues := cuesAt(2000, 4000, 8000, 10_000)
	plan, err := BuildPlan(cues, []int64{2000, 2000}, 8000)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Speedup != 1 {
		t.Fatalf("speedup = %g, want 1 when silence absorbs the overflow", plan.Speedup)
	}
	var total int64
	for _, g := range plan.GapsMS {
		if g < MinGapMS {
			t.Fatalf("gap %d below the %dms minimum", g, MinGapMS)
		}
		if g > 4000 {
			t.Fatalf("gap grew during shrinking: %d", g)
		}
		total += g
	}
	if total+4000 > 8000+1 {
		t.Fatalf("shrunk layout still overflows: %dms silence", total)
	}
}

func TestPlanSpeedupWhenSilenceExhausted(t *testing.T) {
	// 10s of speech for a 6s target: even zeroing the shrinkable silence
	// leaves residual, so speech must speed up and gaps sit at minimum.
	cues := cuesAt(500, 3000, 3500, 6000)
	plan, err := BuildPlan(cues, []int64{5000, 5000}, 6000)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Speedup <= 1 {
		t.Fatalf("speedup = %g, want > 1", plan.Speedup)
	}
	for _, g := range plan.GapsMS {
		if g != MinGapMS {
			t.Fatalf("gap = %d, want pinned at %d when speech must accelerate", g, MinGapMS)
		}
	}
	// Sped-up speech plus minimum gaps must fit the target.
	speech := float64(10_000) / plan.Speedup
	if speech+float64(2*MinGapMS) > 6000+1 {
		t.Fatalf("plan still overflows: %.0fms speech", speech)
	}
}

func TestPlanShrinkFloorsTightGaps(t *testing.T) {
	// Gaps [100 4000] with a 1100ms overflow: silence absorbs it all,
	// and the sub-floor gap is raised to the minimum, not left alone.
	cues := cuesAt(100, 1100, 5100, 6100)
	plan, err := BuildPlan(cues, []int64{1000, 1000}, 5000)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Speedup != 1 {
		t.Fatalf("speedup = %g, want 1", plan.Speedup)
	}
	if plan.GapsMS[0] != MinGapMS {
		t.Fatalf("tight gap = %d, want raised to %d", plan.GapsMS[0], MinGapMS)
	}
	if plan.GapsMS[1] <= MinGapMS || plan.GapsMS[1] >= 4000 {
		t.Fatalf("wide gap = %d, want shrunk but above the floor", plan.GapsMS[1])
	}
}

func TestPlanSpeedupFloorsTightGaps(t *testing.T) {
	// Back-to-back cues leave gaps [0 50]; 10s of speech into a 6s
	// target forces a speed-up, and both gaps come out at the minimum.
	cues := cuesAt(0, 2000, 2050, 4000)
	plan, err := BuildPlan(cues, []int64{5000, 5000}, 6000)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Speedup <= 1 {
		t.Fatalf("speedup = %g, want > 1", plan.Speedup)
	}
	for i, g := range plan.GapsMS {
		if g != MinGapMS {
			t.Fatalf("gap %d = %d, want %d", i, g, MinGapMS)
		}
	}
	if speech := float64(10_000) / plan.Speedup; speech+float64(2*MinGapMS) > 6000+1 {
		t.Fatalf("plan still overflows: %.0fms speech", speech)
	}
}

func TestPlanImpossibleFit(t *testing.T) {
	cues := cuesAt(0, 1000)
	if _, err := BuildPlan(cues, []int64{5000}, 100); err == nil {
		t.Fatal("expected error when speech alone exceeds any possible fit")
	}
	if _, err := BuildPlan(nil, nil, 1000); err == nil {
		t.Fatal("expected error for empty cue list")
	}
	if _, err := BuildPlan(cues, []int64{1000, 1000}, 5000); err == nil {
		t.Fatal("expected error on cue/clip count mismatch")
	}
}

func TestAssemblePinsExactDuration(t *testing.T) {
	const rate = 16000
	cues := cuesAt(1000, 2000, 4000, 5000)
	clips := []*pcm.Buffer{
		tone(rate, 1000),
		tone(rate, 1000),
	}
	for _, target := range []int64{3000, 10_000, 6500} {
		plan, err := BuildPlan(cues, []int64{1000, 1000}, target)
		if err != nil {
			t.Fatalf("BuildPlan(target=%d): %v", target, err)
		}
		out, err := Assemble(plan, clips, rate)
		if err != nil {
			t.Fatalf("Assemble(target=%d): %v", target, err)
		}
		if got := out.DurationMS(); got != target {
			t.Fatalf("assembled %dms, want exactly %d", got, target)
		}
	}
}

func TestAssembleLeadingGapIsSilent(t *testing.T) {
	const rate = 16000
	cues := cuesAt(2000, 3000)
	plan, err := BuildPlan(cues, []int64{1000}, 10_000)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	out, err := Assemble(plan, []*pcm.Buffer{tone(rate, 1000)}, rate)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	head := out.Slice(0, 1900)
	for _, v := range head.Samples {
		if v != 0 {
			t.Fatal("audio before the first cue must be silent")
		}
	}
	speech := out.Slice(2100, 2900)
	loud := false
	for _, v := range speech.Samples {
		if v != 0 {
			loud = true
			break
		}
	}
	if !loud {
		t.Fatal("speech clip not found at its planned position")
	}
}

func tone(rate int, ms int64) *pcm.Buffer {
	n := int(int64(rate) * ms / 1000)
	b := &pcm.Buffer{SampleRate: rate, Samples: make([]int16, n)}
	for i := range b.Samples {
		b.Samples[i] = 8000
	}
	return b
}
