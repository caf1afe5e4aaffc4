package types

// Wire shapes for the command surface. The chat relay is the only consumer;
// field names line up with what its formatter expects.

type PingResponse struct {
	Status string `json:"status" validate:"required"`
}

type SubmitRequest struct {
	MemberID string `json:"member_id" validate:"required,max=64"`
}

type SubmitResponse struct {
	TeamID string       `json:"team_id" validate:"required"`
	TaskID string       `json:"task_id" validate:"required"`
	Action SubmitAction `json:"action"  validate:"required"`
}

type EvidenceRequest struct {
	MemberID    string `json:"member_id"    validate:"required,max=64"`
	EvidenceURL string `json:"evidence_url" validate:"required,url,max=2048"`
	// "image" or "video"; drives inline rendering vs. a bare link
	MediaKind string `json:"media_kind" validate:"required,oneof=image video"`
}

type EvidenceResponse struct {
	TeamID      string `json:"team_id"      validate:"required"`
	TaskID      string `json:"task_id"      validate:"required"`
	ArtifactRef string `json:"artifact_ref" validate:"required"`
}

type DecisionRequest struct {
	ModeratorID string `json:"moderator_id" validate:"required,max=64"`
}

type DecisionResponse struct {
	TeamID  string           `json:"team_id" validate:"required"`
	TaskID  string           `json:"task_id" validate:"required"`
	Status  SubmissionStatus `json:"status"  validate:"required"`
	Awarded *int             `json:"awarded,omitempty"`
}

type ReviewMessageRequest struct {
	ModeratorID string   `json:"moderator_id" validate:"required,max=64"`
	Kind        Decision `json:"kind"         validate:"required,oneof=accept deny"`
	Content     string   `json:"content"      validate:"required,max=1024"`
}

type SubmissionListEntry struct {
	TeamID      string           `json:"team_id"      validate:"required"`
	TeamName    string           `json:"team_name"    validate:"required"`
	Status      SubmissionStatus `json:"status"       validate:"required"`
	EvidenceURL *string          `json:"evidence_url,omitempty"`
}

type CreateTeamRequest struct {
	Name    string   `json:"name"    validate:"required,min=1,max=100"`
	Members []string `json:"members" validate:"required,min=1,max=6,dive,required,max=64"`
}

type CreateTeamResponse struct {
	TeamID  string   `json:"team_id" validate:"required"`
	Added   []string `json:"added"   validate:"required"`
	Skipped []string `json:"skipped" validate:"required"`
}

type RenameTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type TeamListEntry struct {
	TeamID  string   `json:"team_id" validate:"required"`
	Name    string   `json:"name"    validate:"required"`
	Points  int      `json:"points"  validate:"required"`
	Members []string `json:"members" validate:"required"`
}

type AdjustPointsRequest struct {
	Points int    `json:"points" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=512"`
}

type PointsResponse struct {
	TeamID string `json:"team_id" validate:"required"`
	Points int    `json:"points"  validate:"required"`
}

type LeaderboardEntry struct {
	TeamName string `json:"team_name" validate:"required"`
	Points   int    `json:"points"    validate:"required"`
}

type TaskEntry struct {
	TaskID      string `json:"task_id"     validate:"required"`
	Location    int    `json:"location"    validate:"required"`
	Description string `json:"description" validate:"required"`
	MaxPoints   int    `json:"max_points"  validate:"required"`
	Judged      bool   `json:"judged"`
}

type TaskWithStatusEntry struct {
	TaskEntry
	Status SubmissionStatus `json:"status" validate:"required"`
}

type CreateTaskRequest struct {
	Location    int    `json:"location"    validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=2048"`
	MaxPoints   int    `json:"max_points"  validate:"required,gt=0"`
	Judged      bool   `json:"judged"`
}

type StartLocationRequest struct {
	Location int `json:"location" validate:"required,gt=0"`
}

type GameStateResponse struct {
	ActiveLocation     int  `json:"active_location"`
	LeaderboardVisible bool `json:"leaderboard_visible"`
}

type ImportTasksResponse struct {
	Imported int `json:"imported"`
}
