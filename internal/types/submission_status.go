package types

type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"  // Waiting on a moderator decision
	SubmissionStatusAccepted SubmissionStatus = "accepted" // Decided, points awarded, terminal
	SubmissionStatusDenied   SubmissionStatus = "denied"   // Decided, team may resubmit

	// Sentinel for the task listing join. Never stored; the absence of a
	// ledger row is what means "not submitted".
	SubmissionStatusNotSubmitted SubmissionStatus = "not_submitted"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionDeny   Decision = "deny"
)

type SubmitAction string

const (
	SubmitActionSubmitted   SubmitAction = "submitted"
	SubmitActionResubmitted SubmitAction = "resubmitted"
)
