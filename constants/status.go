package constants

// JobStatus is the canonical status for rows in the extraction journal.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning       JobStatus = "RUNNING"        // in progress
	JobStatusOK            JobStatus = "OK"             // five fields parsed
	JobStatusNotRecognized JobStatus = "NOT_RECOGNIZED" // reply did not yield five fields
	JobStatusFailed        JobStatus = "FAILED"         // extraction or completion failure
)

// ReplyFormat selects how the model is asked to shape its answer.
type ReplyFormat string

const (
	ReplyPositional ReplyFormat = "positional"
	ReplyJSON       ReplyFormat = "json"
)

// MaxUploadMBDefault caps multipart uploads.
const MaxUploadMBDefault = 10
