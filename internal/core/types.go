package core

// ModerationState is the asset platform's content-review verdict for a
// created asset. Values outside the four known states are kept verbatim and
// treated as non-terminal.
type ModerationState string

// Known moderation states.
const (
	ModerationReviewing ModerationState = "Reviewing"
	ModerationApproved  ModerationState = "Approved"
	ModerationRejected  ModerationState = "Rejected"
	ModerationFailed    ModerationState = "Failed"
	ModerationUnknown   ModerationState = "Unknown"
)

// Terminal reports whether the state ends the moderation pipeline.
func (s ModerationState) Terminal() bool {
	switch s {
	case ModerationApproved, ModerationRejected, ModerationFailed:
		return true
	case ModerationReviewing, ModerationUnknown:
		return false
	default:
		return false
	}
}

// UploadRequest describes one audio payload to publish. Immutable once
// constructed.
type UploadRequest struct {
	FileBytes   []byte
	Filename    string
	ContentType string
	DisplayName string
}

// OperationStatus is one observation of an asynchronous asset-creation job.
// AssetID and Moderation are only meaningful once Done is true.
type OperationStatus struct {
	Done       bool
	AssetID    int64
	Moderation ModerationState
}

// UploadOutcome is the terminal result of one publish attempt. Never mutated
// after construction.
type UploadOutcome struct {
	Success     bool
	AssetID     int64
	OperationID string
	Note        string
	Err         error
}
