package audit

import (
	"encoding/json"
	"fmt"

	"github.com/roadrallyhq/rally-api/internal/logger"
	"github.com/roadrallyhq/rally-api/internal/types"
)

type Context struct {
	TeamID *string
	TaskID *string
	GameID string
}

func (c Context) message(t EventType, d Disposition) Message {
	return Message{
		TaskID:        c.TaskID,
		TeamID:        c.TeamID,
		LogContext:    logContext,
		SchemaVersion: schemaVersion,
		GameID:        c.GameID,
		Disposition:   d,
		Type:          t,
		Timestamp:     types.NowUnixMilli(),
	}
}

func dispForStatus(status types.SubmissionStatus) Disposition {
	switch status {
	case types.SubmissionStatusAccepted:
		return DispositionGood
	case types.SubmissionStatusDenied:
		return DispositionBad
	case types.SubmissionStatusPending, types.SubmissionStatusNotSubmitted:
		return DispositionNeutral
	default:
		return DispositionNeutral
	}
}

func emit(event any, evtType EventType) {
	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "eventType", evtType)
		return
	}

	// the audit stream is consumed off stdout by the game operators
	fmt.Println(string(evtStr))
}

func LogTaskCreated(c Context, location int, description string, maxPoints int, judged bool) {
	event := TaskCreated{}
	event.Message = c.message(EvtTaskCreated, DispositionNeutral)

	event.Event.Location = location
	event.Event.Description = description
	event.Event.MaxPoints = maxPoints
	event.Event.Judged = judged

	emit(event, EvtTaskCreated)
}

func LogTaskSubmission(c Context, submissionID string, action types.SubmitAction) {
	event := TaskSubmission{}
	event.Message = c.message(EvtTaskSubmission, DispositionNeutral)

	event.Event.SubmissionID = submissionID
	event.Event.Action = action

	emit(event, EvtTaskSubmission)
}

func LogEvidenceAttached(c Context, submissionID, evidenceURL, artifactRef string) {
	event := EvidenceAttached{}
	event.Message = c.message(EvtEvidenceAttached, DispositionNeutral)

	event.Event.SubmissionID = submissionID
	event.Event.EvidenceURL = evidenceURL
	event.Event.ArtifactRef = artifactRef

	emit(event, EvtEvidenceAttached)
}

func LogSubmissionDecision(
	c Context,
	submissionID string,
	status types.SubmissionStatus,
	moderatorID string,
	awarded *int,
	reason *string,
) {
	event := SubmissionDecision{}
	event.Message = c.message(EvtSubmissionDecision, dispForStatus(status))

	event.Event.SubmissionID = submissionID
	event.Event.Status = status
	event.Event.ModeratorID = moderatorID
	event.Event.Awarded = awarded
	event.Event.Reason = reason

	emit(event, EvtSubmissionDecision)
}

func LogPointsAdjusted(c Context, delta, total int, reason string) {
	disp := DispositionGood
	if delta < 0 {
		disp = DispositionBad
	}

	event := PointsAdjusted{}
	event.Message = c.message(EvtPointsAdjusted, disp)

	event.Event.Delta = delta
	event.Event.Total = total
	event.Event.Reason = reason

	emit(event, EvtPointsAdjusted)
}

func LogTeamCreated(c Context, name string, added, skipped []string) {
	event := TeamCreated{}
	event.Message = c.message(EvtTeamCreated, DispositionNeutral)

	event.Event.Name = name
	event.Event.Added = added
	event.Event.Skipped = skipped

	emit(event, EvtTeamCreated)
}

func LogTeamRemoved(c Context, name string) {
	event := TeamRemoved{}
	event.Message = c.message(EvtTeamRemoved, DispositionNeutral)

	event.Event.Name = name

	emit(event, EvtTeamRemoved)
}

func LogLocationStarted(c Context, location, taskCount int) {
	event := LocationStarted{}
	event.Message = c.message(EvtLocationStarted, DispositionNeutral)

	event.Event.Location = location
	event.Event.TaskCount = taskCount

	emit(event, EvtLocationStarted)
}

func LogLeaderboardToggled(c Context, visible bool) {
	event := LeaderboardToggled{}
	event.Message = c.message(EvtLeaderboardToggled, DispositionNeutral)

	event.Event.Visible = visible

	emit(event, EvtLeaderboardToggled)
}

func LogFileArchived(c Context, bucketName, objectName, submissionID string) {
	event := FileArchived{}
	event.Message = c.message(EvtFileArchived, DispositionNeutral)

	event.Event.BucketName = bucketName
	event.Event.ObjectName = objectName
	event.Event.SubmissionID = submissionID

	emit(event, EvtFileArchived)
}
