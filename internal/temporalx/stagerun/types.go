package stagerun

const (
	TranscribeWorkflowName = "transcribe"
	NarrateWorkflowName    = "narrate"
	DirectTTSWorkflowName  = "direct_tts"
	MergeWorkflowName      = "merge"

	ActivityTranscribe = "transcribe_run"
	ActivityNarrate    = "narrate_run"
	ActivityDirectTTS  = "direct_tts_run"
	ActivityMerge      = "merge_run"
)

// PermanentFailure is the application error type the retry policies never
// retry. Activities translate pipeline.PermanentError into it.
const PermanentFailure = "PermanentFailure"
