package models

import "time"

// Decision values recorded for a request level.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Decision provenance. Informational only; it never affects evaluation.
const (
	SourceChannel = "channel"
	SourceHome    = "home"
)

// Request is one submitted workflow request. Rows are never deleted; terminal
// requests are kept for audit.
type Request struct {
	ID          int64
	Type        string
	CreatedBy   string
	PayloadJSON string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DecidedBy   string
	DecidedAt   *time.Time
	RequestKey  string
	Version     int
}

// ApprovalDecision is the latest live decision of one user at one level of a
// request. The (RequestID, Level, DecidedBy) triple is unique; resubmission
// overwrites in place.
type ApprovalDecision struct {
	ID            int64
	RequestID     int64
	Level         int
	Decision      string
	DecidedBy     string
	DecidedAt     time.Time
	Reason        string
	AttachmentURL string
	Source        string
}

// MessageRef links a request to its rendered Slack message.
type MessageRef struct {
	ID        int64
	RequestID int64
	ChannelID string
	TS        string
	ThreadTS  string
}

// StatusTransition is one audit row of the request status history.
type StatusTransition struct {
	ID             int64
	RequestID      int64
	PreviousStatus string
	NewStatus      string
	DecidedBy      string
	CreatedAt      time.Time
}
