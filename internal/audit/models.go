package audit

import (
	"github.com/roadrallyhq/rally-api/internal/types"
)

var schemaVersion = "0.1.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type EventType string

const (
	EvtTaskCreated        EventType = "task_created"
	EvtTaskSubmission     EventType = "task_submission"
	EvtEvidenceAttached   EventType = "evidence_attached"
	EvtSubmissionDecision EventType = "submission_decision"
	EvtPointsAdjusted     EventType = "points_adjusted"
	EvtTeamCreated        EventType = "team_created"
	EvtTeamRemoved        EventType = "team_removed"
	EvtLocationStarted    EventType = "location_started"
	EvtLeaderboardToggled EventType = "leaderboard_toggled"
	EvtFileArchived       EventType = "file_archived"
)

type Message struct {
	TaskID        *string     `json:"task_id"`
	TeamID        *string     `json:"team_id"`
	LogContext    string      `json:"log_context" validate:"required"`
	SchemaVersion string      `json:"version"     validate:"required"`
	GameID        string      `json:"game_id"     validate:"required"`
	Disposition   Disposition `json:"disposition" validate:"required"`
	Type          EventType   `json:"event_type"  validate:"required"`

	Timestamp types.UnixMilli `json:"timestamp" validate:"required"`
}

type TaskCreatedEvent struct {
	Location    int    `json:"location"    validate:"required"`
	Description string `json:"description" validate:"required"`
	MaxPoints   int    `json:"max_points"  validate:"required"`
	Judged      bool   `json:"judged"`
}

type TaskCreated struct {
	Event TaskCreatedEvent `json:"event" validate:"required"`
	Message
}

type TaskSubmissionEvent struct {
	SubmissionID string             `json:"submission_id" validate:"required"`
	Action       types.SubmitAction `json:"action"        validate:"required"`
}

type TaskSubmission struct {
	Event TaskSubmissionEvent `json:"event" validate:"required"`
	Message
}

type EvidenceAttachedEvent struct {
	SubmissionID string `json:"submission_id" validate:"required"`
	EvidenceURL  string `json:"evidence_url"  validate:"required"`
	ArtifactRef  string `json:"artifact_ref"  validate:"required"`
}

type EvidenceAttached struct {
	Event EvidenceAttachedEvent `json:"event" validate:"required"`
	Message
}

type SubmissionDecisionEvent struct {
	SubmissionID string                 `json:"submission_id" validate:"required"`
	Status       types.SubmissionStatus `json:"status"        validate:"required"`
	ModeratorID  string                 `json:"moderator_id"  validate:"required"`
	Awarded      *int                   `json:"awarded,omitempty"`
	Reason       *string                `json:"reason,omitempty"`
}

type SubmissionDecision struct {
	Event SubmissionDecisionEvent `json:"event" validate:"required"`
	Message
}

type PointsAdjustedEvent struct {
	Delta  int    `json:"delta"  validate:"required"`
	Total  int    `json:"total"  validate:"required"`
	Reason string `json:"reason"`
}

type PointsAdjusted struct {
	Event PointsAdjustedEvent `json:"event" validate:"required"`
	Message
}

type TeamCreatedEvent struct {
	Name    string   `json:"name"    validate:"required"`
	Added   []string `json:"added"   validate:"required"`
	Skipped []string `json:"skipped"`
}

type TeamCreated struct {
	Event TeamCreatedEvent `json:"event" validate:"required"`
	Message
}

type TeamRemovedEvent struct {
	Name string `json:"name" validate:"required"`
}

type TeamRemoved struct {
	Event TeamRemovedEvent `json:"event" validate:"required"`
	Message
}

type LocationStartedEvent struct {
	Location  int `json:"location"   validate:"required"`
	TaskCount int `json:"task_count" validate:"required"`
}

type LocationStarted struct {
	Event LocationStartedEvent `json:"event" validate:"required"`
	Message
}

type LeaderboardToggledEvent struct {
	Visible bool `json:"visible"`
}

type LeaderboardToggled struct {
	Event LeaderboardToggledEvent `json:"event" validate:"required"`
	Message
}

type FileArchivedEvent struct {
	BucketName   string `json:"bucket_name"   validate:"required"`
	ObjectName   string `json:"object_name"   validate:"required"`
	SubmissionID string `json:"submission_id" validate:"required"`
}

type FileArchived struct {
	Event FileArchivedEvent `json:"event" validate:"required"`
	Message
}
