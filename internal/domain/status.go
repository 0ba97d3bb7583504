package domain

// Job, narration and merge lifecycles. Non-terminal states advance only
// through pipeline stage handlers; CANCELED is written exclusively by the
// request path, FAILED->PENDING exclusively by an explicit retry.

type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobPreparing  JobStatus = "PREPARING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCanceled   JobStatus = "CANCELED"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

func (s JobStatus) Cancelable() bool {
	return s == JobPending || s == JobPreparing || s == JobProcessing
}

type NarrationStatus string

const (
	NarrationPending    NarrationStatus = "PENDING"
	NarrationProcessing NarrationStatus = "PROCESSING"
	NarrationCompleted  NarrationStatus = "COMPLETED"
	NarrationFailed     NarrationStatus = "FAILED"
	NarrationCanceled   NarrationStatus = "CANCELED"
)

func (s NarrationStatus) Terminal() bool {
	return s == NarrationCompleted || s == NarrationFailed || s == NarrationCanceled
}

func (s NarrationStatus) Cancelable() bool {
	return s == NarrationPending || s == NarrationProcessing
}

// MergeStatus is the independent sub-state tracking the mux of a narration
// onto its job's video. The zero value means no merge was ever requested.
type MergeStatus string

const (
	MergeNone       MergeStatus = ""
	MergePending    MergeStatus = "MERGE_PENDING"
	MergeProcessing MergeStatus = "MERGE_PROCESSING"
	MergeCompleted  MergeStatus = "MERGE_COMPLETED"
	MergeFailed     MergeStatus = "MERGE_FAILED"
	MergeCanceled   MergeStatus = "MERGE_CANCELED"
)

func (s MergeStatus) Terminal() bool {
	return s == MergeCompleted || s == MergeFailed || s == MergeCanceled
}

func (s MergeStatus) Cancelable() bool {
	return s == MergePending || s == MergeProcessing
}

// MaxRetries caps both automatic task retries and user-requested retries
// from FAILED. Past the cap the entity stays FAILED with its last error.
const MaxRetries = 3
