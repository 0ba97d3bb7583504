package domain

// Action is the tagged variant naming the next pipeline stage an entity
// pair is eligible for. Dispatch and retry paths consult NextAction
// instead of inspecting nullable fields ad hoc.
type Action int

const (
	ActionNone Action = iota
	ActionTranscribe
	ActionNarrate
	ActionDirectTTS
	ActionMerge
)

func (a Action) String() string {
	switch a {
	case ActionTranscribe:
		return "transcribe"
	case ActionNarrate:
		return "narrate"
	case ActionDirectTTS:
		return "direct_tts"
	case ActionMerge:
		return "merge"
	default:
		return "none"
	}
}

// NextAction computes, from persisted state alone, which stage should run
// next for the given entities. Either argument may be nil.
//
// Rules, in order:
//   - a job without a completed subtitle result wants transcription,
//     unless it is canceled or terminally failed past retry;
//   - a non-terminal narration wants narration (job-backed) or direct TTS
//     (text-backed); a job-backed narration is only runnable once its
//     job's subtitle result exists;
//   - a completed job-backed narration whose merge has been requested but
//     not completed wants the merge.
func NextAction(j *Job, n *Narration) Action {
	if n == nil {
		if j == nil {
			return ActionNone
		}
		switch j.Status {
		case JobPending, JobPreparing, JobProcessing, JobFailed:
			return ActionTranscribe
		default:
			return ActionNone
		}
	}

	if !n.Status.Terminal() || n.Status == NarrationFailed {
		if n.Status == NarrationCanceled {
			return ActionNone
		}
		if n.JobBacked() {
			if j == nil || j.Status != JobCompleted || j.ResultSRTKey == "" {
				return ActionNone
			}
			return ActionNarrate
		}
		if n.TextContent != "" {
			return ActionDirectTTS
		}
		return ActionNone
	}

	if n.Status == NarrationCompleted && n.JobBacked() {
		switch n.MergeStatus {
		case MergePending, MergeProcessing, MergeFailed:
			return ActionMerge
		}
	}
	return ActionNone
}
