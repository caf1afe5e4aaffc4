package types

import "errors"

// Domain failure kinds. These are recovered at the command boundary and
// surfaced as non-fatal, user-visible errors; anything else coming out of
// the ledger is treated as a storage fault.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyAccepted     = errors.New("submission already accepted")
	ErrAlreadyDecided      = errors.New("submission already decided")
	ErrInvalidScore        = errors.New("score out of range for task")
	ErrUnauthorized        = errors.New("missing moderator capability")
	ErrReviewTimeout       = errors.New("review wait timed out")
	ErrNoTasksAtLocation   = errors.New("no tasks at location")
	ErrLocationNotActive   = errors.New("task is not at the active location")
	ErrLeaderboardHidden   = errors.New("leaderboard is hidden")
	ErrNotPending          = errors.New("submission is not pending")
	ErrReviewNotActionable = errors.New("no active review for submission")
	ErrReviewInProgress    = errors.New("a review exchange is already active for submission")
)
