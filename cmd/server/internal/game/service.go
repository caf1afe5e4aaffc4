// Package game owns the submission lifecycle and the points ledger. All
// state transitions run through here; routes and the review manager are
// thin layers on top.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/archive"
	"github.com/roadrallyhq/rally-api/internal/audit"
	"github.com/roadrallyhq/rally-api/internal/platform"
	"github.com/roadrallyhq/rally-api/internal/types"
	"github.com/roadrallyhq/rally-api/internal/validator"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/cmd/server/internal/game")

// Request to open a review artifact for a pending submission.
type OpenRequest struct {
	TeamID          uuid.UUID
	TaskID          uuid.UUID
	TeamName        string
	TaskDescription string
	EvidenceURL     string
	MediaKind       string
	MaxPoints       int
	Judged          bool
}

// Posts review artifacts to the moderation surface. Implemented by the
// review manager; an interface here keeps the dependency one-directional.
type ArtifactOpener interface {
	Open(ctx context.Context, req OpenRequest) (string, error)
}

type Service struct {
	db       *gorm.DB
	gateway  platform.Gateway
	opener   ArtifactOpener
	archiver *archive.Archiver // nil disables evidence archival
	gameID   string
	// when true submit is rejected for tasks outside the active location
	enforceLocation bool
}

func NewService(
	db *gorm.DB,
	gateway platform.Gateway,
	archiver *archive.Archiver,
	gameID string,
	enforceLocation bool,
) *Service {
	return &Service{
		db:              db,
		gateway:         gateway,
		archiver:        archiver,
		gameID:          gameID,
		enforceLocation: enforceLocation,
	}
}

// The opener is set after construction because the review manager needs the
// service to apply decisions.
func (s *Service) SetArtifactOpener(opener ArtifactOpener) {
	s.opener = opener
}

func (s *Service) auditContext(teamID, taskID uuid.UUID) audit.Context {
	team := teamID.String()
	task := taskID.String()
	return audit.Context{TeamID: &team, TaskID: &task, GameID: s.gameID}
}

// Marks a task as attempted by the submitting member's team. An accepted
// submission is terminal; a pending or denied one is reset and goes through
// review again.
func (s *Service) Submit(
	ctx context.Context,
	memberID string,
	taskID uuid.UUID,
) (*types.SubmitResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.Submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("member.id", memberID),
		attribute.String("task.id", taskID.String()),
	)

	span.AddEvent("resolving team for member")
	team, err := models.TeamForMember(ctx, s.db, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "member is not on a team")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve team")
		return nil, err
	}

	span.SetAttributes(attribute.String("team.id", team.ID.String()))

	task, err := models.ByID[models.Task](ctx, s.db, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "task does not exist")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get task")
		return nil, err
	}

	if s.enforceLocation {
		span.AddEvent("checking task against the active location")
		session, err := models.CurrentGameSession(ctx, s.db)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get game session")
			return nil, err
		}

		if task.Location != session.ActiveLocation {
			span.SetStatus(codes.Ok, "task is not at the active location")
			return nil, types.ErrLocationNotActive
		}
	}

	action := types.SubmitActionSubmitted

	existing, err := models.SubmissionForTeamTask(ctx, s.db, team.ID, taskID)
	switch {
	case err == nil:
		if existing.Status == types.SubmissionStatusAccepted {
			span.SetStatus(codes.Ok, "submission already accepted")
			return nil, types.ErrAlreadyAccepted
		}

		span.AddEvent("resetting existing submission")
		if err := s.resetSubmission(ctx, existing); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reset submission")
			return nil, err
		}
		action = types.SubmitActionResubmitted

	case errors.Is(err, gorm.ErrRecordNotFound):
		span.AddEvent("creating submission row")
		submission := models.Submission{
			TeamID: team.ID,
			TaskID: taskID,
			Status: types.SubmissionStatusPending,
		}
		if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create submission")
			return nil, fmt.Errorf("failed to create submission: %w", err)
		}
		existing = &submission

	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, err
	}

	audit.LogTaskSubmission(s.auditContext(team.ID, taskID), existing.ID.String(), action)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "recorded submission")
	return &types.SubmitResponse{
		TeamID: team.ID.String(),
		TaskID: taskID.String(),
		Action: action,
	}, nil
}

// Puts a pending or denied submission back into the pending state with no
// evidence. The stale review artifact loses its controls first so a
// moderator cannot decide on evidence that no longer counts.
func (s *Service) resetSubmission(ctx context.Context, submission *models.Submission) error {
	ctx, span := tracer.Start(ctx, "Service.resetSubmission")
	defer span.End()

	if submission.ArtifactRef != nil {
		span.AddEvent("disabling stale review artifact")
		note := "Superseded by a newer submission."
		err := s.gateway.UpdateArtifact(ctx, *submission.ArtifactRef, platform.ArtifactUpdate{
			Content:         &note,
			DisableControls: true,
		})
		if err != nil {
			// best effort, the conditional update below is what guards state
			span.RecordError(err)
			span.AddEvent("failed to disable stale artifact, continuing")
		}
	}

	result := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status <> ?", submission.ID, types.SubmissionStatusAccepted).
		Updates(map[string]any{
			"status":       types.SubmissionStatusPending,
			"evidence_url": nil,
			"artifact_ref": nil,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to reset submission row")
		return fmt.Errorf("failed to reset submission row: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// lost a race with an accept
		span.SetStatus(codes.Ok, "submission was accepted concurrently")
		return types.ErrAlreadyAccepted
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "reset submission")
	return nil
}

// Attaches an evidence link to a pending submission and opens the review
// artifact for moderators.
func (s *Service) AttachEvidence(
	ctx context.Context,
	memberID string,
	taskID uuid.UUID,
	evidenceURL string,
	mediaKind string,
) (*types.EvidenceResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.AttachEvidence")
	defer span.End()

	span.SetAttributes(
		attribute.String("member.id", memberID),
		attribute.String("task.id", taskID.String()),
		attribute.String("media.kind", mediaKind),
	)

	if !validator.ValidateEvidenceURL(evidenceURL) {
		span.SetStatus(codes.Ok, "evidence url failed validation")
		return nil, types.ErrNotFound
	}

	team, err := models.TeamForMember(ctx, s.db, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "member is not on a team")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve team")
		return nil, err
	}

	submission, err := models.SubmissionForTeamTask(ctx, s.db, team.ID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "no submission for task")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, err
	}

	if submission.Status != types.SubmissionStatusPending {
		span.SetStatus(codes.Ok, "submission is not pending")
		return nil, types.ErrNotPending
	}

	task, err := models.ByID[models.Task](ctx, s.db, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get task")
		return nil, err
	}

	span.AddEvent("opening review artifact")
	artifactRef, err := s.opener.Open(ctx, OpenRequest{
		TeamID:          team.ID,
		TaskID:          taskID,
		TeamName:        team.Name,
		TaskDescription: task.Description,
		EvidenceURL:     evidenceURL,
		MediaKind:       mediaKind,
		MaxPoints:       task.MaxPoints,
		Judged:          task.Judged,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open review artifact")
		return nil, err
	}

	result := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", submission.ID, types.SubmissionStatusPending).
		Updates(map[string]any{
			"evidence_url": evidenceURL,
			"artifact_ref": artifactRef,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to store evidence")
		return nil, fmt.Errorf("failed to store evidence: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		span.SetStatus(codes.Ok, "submission left pending state concurrently")
		return nil, types.ErrNotPending
	}

	audit.LogEvidenceAttached(
		s.auditContext(team.ID, taskID),
		submission.ID.String(),
		evidenceURL,
		artifactRef,
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "attached evidence")
	return &types.EvidenceResponse{
		TeamID:      team.ID.String(),
		TaskID:      taskID.String(),
		ArtifactRef: artifactRef,
	}, nil
}

// Pre-flight for a review exchange: confirms the submission exists and is
// still pending, and reports the task's scoring shape.
func (s *Service) ReviewBounds(
	ctx context.Context,
	teamID uuid.UUID,
	taskID uuid.UUID,
) (judged bool, maxPoints int, err error) {
	ctx, span := tracer.Start(ctx, "Service.ReviewBounds")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.String("task.id", taskID.String()),
	)

	submission, err := models.SubmissionForTeamTask(ctx, s.db, teamID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "no submission for task")
			return false, 0, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return false, 0, err
	}

	if submission.Status != types.SubmissionStatusPending {
		span.SetStatus(codes.Ok, "submission already decided")
		s.disableStaleControls(ctx, teamID, taskID)
		return false, 0, types.ErrAlreadyDecided
	}

	task, err := models.ByID[models.Task](ctx, s.db, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get task")
		return false, 0, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "submission is reviewable")
	return task.Judged, task.MaxPoints, nil
}

// Applies a moderator decision to a pending submission. Acceptance awards
// points in the same transaction that flips the status; the decision either
// fully lands or not at all.
func (s *Service) Decide(
	ctx context.Context,
	teamID uuid.UUID,
	taskID uuid.UUID,
	decision types.Decision,
	moderatorID string,
	awarded *int,
	reason *string,
) (*types.DecisionResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.Decide")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.String("task.id", taskID.String()),
		attribute.String("decision", string(decision)),
		attribute.String("moderator.id", moderatorID),
	)

	task, err := models.ByID[models.Task](ctx, s.db, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "task does not exist")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get task")
		return nil, err
	}

	submission, err := models.SubmissionForTeamTask(ctx, s.db, teamID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "no submission for task")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, err
	}

	status := types.SubmissionStatusDenied
	points := 0
	var awardedPoints *int

	if decision == types.DecisionAccept {
		status = types.SubmissionStatusAccepted
		points = task.MaxPoints
		if task.Judged {
			if awarded == nil || *awarded < 0 || *awarded > task.MaxPoints {
				span.SetStatus(codes.Ok, "judged score out of range")
				return nil, types.ErrInvalidScore
			}
			points = *awarded
		}
		awardedPoints = &points
	}

	span.AddEvent("applying decision transactionally")
	err = s.db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "Service.Decide/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		result := tx.Model(&models.Submission{}).
			Where("id = ? AND status = ?", submission.ID, types.SubmissionStatusPending).
			Update("status", status)
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to update submission status")
			return fmt.Errorf("failed to update submission status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			span.SetStatus(codes.Ok, "submission was not pending")
			return types.ErrAlreadyDecided
		}

		if status == types.SubmissionStatusAccepted && points > 0 {
			span.AddEvent("crediting points to team")
			err := tx.Model(&models.Team{}).
				Where("id = ?", teamID).
				Update("points", gorm.Expr("points + ?", points)).Error
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to credit points")
				return fmt.Errorf("failed to credit points: %w", err)
			}
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "applied decision")
		return nil
	})
	if err != nil {
		if errors.Is(err, types.ErrAlreadyDecided) {
			s.disableStaleControls(ctx, teamID, taskID)
			span.SetStatus(codes.Ok, "submission already decided")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to apply decision")
		return nil, err
	}

	audit.LogSubmissionDecision(
		s.auditContext(teamID, taskID),
		submission.ID.String(),
		status,
		moderatorID,
		awardedPoints,
		reason,
	)

	s.notifyDecision(ctx, teamID, task, status, points, reason)

	if submission.ArtifactRef != nil {
		span.AddEvent("finalizing review artifact")
		summary := decisionSummary(status, moderatorID, points, reason)
		err := s.gateway.UpdateArtifact(ctx, *submission.ArtifactRef, platform.ArtifactUpdate{
			Content:         &summary,
			DisableControls: true,
		})
		if err != nil {
			span.RecordError(err)
			span.AddEvent("failed to finalize artifact, continuing")
		}
	}

	if status == types.SubmissionStatusAccepted &&
		s.archiver != nil && submission.EvidenceURL != nil {
		span.AddEvent("archiving accepted evidence")
		err := s.archiver.ArchiveEvidence(
			ctx,
			s.auditContext(teamID, taskID),
			submission.ID.String(),
			*submission.EvidenceURL,
		)
		if err != nil {
			// archive failures never unwind a committed decision
			span.RecordError(err)
			span.AddEvent("failed to archive evidence, continuing")
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "decided submission")
	return &types.DecisionResponse{
		TeamID:  teamID.String(),
		TaskID:  taskID.String(),
		Status:  status,
		Awarded: awardedPoints,
	}, nil
}

// Strips the decision controls from the artifact of a submission that was
// already decided. Covers stale clicks whose original finalization failed;
// best effort, the caller still reports the decided state either way.
func (s *Service) disableStaleControls(ctx context.Context, teamID, taskID uuid.UUID) {
	ctx, span := tracer.Start(ctx, "Service.disableStaleControls")
	defer span.End()

	submission, err := models.SubmissionForTeamTask(ctx, s.db, teamID, taskID)
	if err != nil {
		span.RecordError(err)
		span.AddEvent("failed to get submission, skipping control disable")
		return
	}
	if submission.ArtifactRef == nil {
		span.SetStatus(codes.Ok, "no artifact to disable")
		return
	}

	err = s.gateway.UpdateArtifact(ctx, *submission.ArtifactRef, platform.ArtifactUpdate{
		DisableControls: true,
	})
	if err != nil {
		span.RecordError(err)
		span.AddEvent("failed to disable stale artifact, continuing")
		return
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "disabled stale controls")
}

func decisionSummary(
	status types.SubmissionStatus,
	moderatorID string,
	points int,
	reason *string,
) string {
	if status == types.SubmissionStatusAccepted {
		return fmt.Sprintf("Accepted by <@%s> for %d points.", moderatorID, points)
	}

	summary := fmt.Sprintf("Denied by <@%s>.", moderatorID)
	if reason != nil && *reason != "" {
		summary += " Reason: " + *reason
	}
	return summary
}

// DMs every member of the team about the decision. Best effort, a missed
// message never unwinds the decision.
func (s *Service) notifyDecision(
	ctx context.Context,
	teamID uuid.UUID,
	task *models.Task,
	status types.SubmissionStatus,
	points int,
	reason *string,
) {
	ctx, span := tracer.Start(ctx, "Service.notifyDecision")
	defer span.End()

	memberIDs, err := models.MemberIDsForTeam(ctx, s.db, teamID)
	if err != nil {
		span.RecordError(err)
		span.AddEvent("failed to list members, skipping notifications")
		return
	}

	var text string
	if status == types.SubmissionStatusAccepted {
		text = fmt.Sprintf("Your submission for %q was accepted for %d points.", task.Description, points)
	} else {
		text = fmt.Sprintf("Your submission for %q was denied. You may resubmit.", task.Description)
		if reason != nil && *reason != "" {
			text += " Reason: " + *reason
		}
	}

	for _, memberID := range memberIDs {
		if err := s.gateway.NotifyUser(ctx, memberID, text); err != nil {
			span.RecordError(err)
			span.AddEvent("failed to notify member, continuing")
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "notified team")
}
