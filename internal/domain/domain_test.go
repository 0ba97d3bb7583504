package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestJobStatusTerminal(t *testing.T) {
	cases := map[JobStatus]bool{
		JobPending:    false,
		JobPreparing:  false,
		JobProcessing: false,
		JobCompleted:  true,
		JobFailed:     true,
		JobCanceled:   true,
	}
	for s, want := range cases {
		if got := s.Terminal(); got != want {
			t.Errorf("JobStatus(%s).Terminal() = %v, want %v", s, got, want)
		}
		if s.Cancelable() == want {
			t.Errorf("JobStatus(%s) should be cancelable iff non-terminal", s)
		}
	}
}

func TestMergeStatusZeroValue(t *testing.T) {
	var s MergeStatus
	if s != MergeNone {
		t.Fatalf("zero MergeStatus = %q, want MergeNone", s)
	}
	if s.Terminal() || s.Cancelable() {
		t.Fatal("MergeNone must be neither terminal nor cancelable")
	}
}

func TestNextActionJobOnly(t *testing.T) {
	cases := []struct {
		status JobStatus
		want   Action
	}{
		{JobPending, ActionTranscribe},
		{JobPreparing, ActionTranscribe},
		{JobProcessing, ActionTranscribe},
		{JobFailed, ActionTranscribe},
		{JobCompleted, ActionNone},
		{JobCanceled, ActionNone},
	}
	for _, c := range cases {
		j := &Job{Status: c.status}
		if got := NextAction(j, nil); got != c.want {
			t.Errorf("NextAction(job %s, nil) = %v, want %v", c.status, got, c.want)
		}
	}
	if got := NextAction(nil, nil); got != ActionNone {
		t.Errorf("NextAction(nil, nil) = %v, want ActionNone", got)
	}
}

func TestNextActionTextBackedNarration(t *testing.T) {
	n := &Narration{TextContent: "hello there", Status: NarrationPending}
	if got := NextAction(nil, n); got != ActionDirectTTS {
		t.Fatalf("NextAction = %v, want ActionDirectTTS", got)
	}
	n.Status = NarrationFailed
	if got := NextAction(nil, n); got != ActionDirectTTS {
		t.Fatalf("failed text narration should still want direct TTS, got %v", got)
	}
	n.Status = NarrationCanceled
	if got := NextAction(nil, n); got != ActionNone {
		t.Fatalf("canceled narration must never dispatch, got %v", got)
	}
	n.Status = NarrationCompleted
	if got := NextAction(nil, n); got != ActionNone {
		t.Fatalf("completed text narration has no merge path, got %v", got)
	}
}

func TestNextActionJobBackedNarration(t *testing.T) {
	jobID := uuid.New()
	j := &Job{ID: jobID, Status: JobCompleted, ResultSRTKey: "results/x.srt"}
	n := &Narration{JobID: &jobID, Status: NarrationPending}

	if got := NextAction(j, n); got != ActionNarrate {
		t.Fatalf("NextAction = %v, want ActionNarrate", got)
	}

	// Narration cannot run before the job's subtitles exist.
	early := &Job{ID: jobID, Status: JobProcessing}
	if got := NextAction(early, n); got != ActionNone {
		t.Fatalf("narration of an unfinished job should not dispatch, got %v", got)
	}
	if got := NextAction(nil, n); got != ActionNone {
		t.Fatalf("job-backed narration with no job loaded should not dispatch, got %v", got)
	}
}

func TestNextActionMerge(t *testing.T) {
	jobID := uuid.New()
	j := &Job{ID: jobID, Status: JobCompleted, ResultSRTKey: "results/x.srt"}
	n := &Narration{JobID: &jobID, Status: NarrationCompleted}

	if got := NextAction(j, n); got != ActionNone {
		t.Fatalf("completed narration without merge request should be idle, got %v", got)
	}

	for _, ms := range []MergeStatus{MergePending, MergeProcessing, MergeFailed} {
		n.MergeStatus = ms
		if got := NextAction(j, n); got != ActionMerge {
			t.Errorf("merge status %s: NextAction = %v, want ActionMerge", ms, got)
		}
	}
	for _, ms := range []MergeStatus{MergeCompleted, MergeCanceled, MergeNone} {
		n.MergeStatus = ms
		if got := NextAction(j, n); got != ActionNone {
			t.Errorf("merge status %q: NextAction = %v, want ActionNone", ms, got)
		}
	}
}

func TestJobBacked(t *testing.T) {
	id := uuid.New()
	if (&Narration{JobID: &id}).JobBacked() != true {
		t.Fatal("narration with job id must be job-backed")
	}
	if (&Narration{TextContent: "x"}).JobBacked() {
		t.Fatal("text narration must not be job-backed")
	}
	nilID := uuid.Nil
	if (&Narration{JobID: &nilID}).JobBacked() {
		t.Fatal("nil uuid does not count as a job reference")
	}
}
