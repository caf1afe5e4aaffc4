package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/roadrallyhq/rally-api/internal/types"
)

// One submission per (team, task); resubmission reuses the row. EvidenceURL
// and ArtifactRef are plain pointers rather than Null wrappers so the zero
// value scans cleanly on every supported driver.
type Submission struct {
	EvidenceURL *string
	ArtifactRef *string
	Status      types.SubmissionStatus `gorm:"index"`
	Model
	TeamID uuid.UUID `gorm:"uniqueIndex:idx_submissions_team_task"`
	TaskID uuid.UUID `gorm:"uniqueIndex:idx_submissions_team_task"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s Submission) GetID() uuid.UUID {
	return s.ID
}

func SubmissionForTeamTask(
	ctx context.Context,
	db *gorm.DB,
	teamID, taskID uuid.UUID,
) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "SubmissionForTeamTask")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.String("task.id", taskID.String()),
	)

	var submission Submission
	err := db.WithContext(ctx).
		First(&submission, "team_id = ? AND task_id = ?", teamID, taskID).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get submission")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got submission")
	return &submission, nil
}

type SubmissionWithTeam struct {
	Submission
	TeamName string
}

// All submissions for one task joined with team names, for the moderator
// listing.
func SubmissionsForTask(
	ctx context.Context,
	db *gorm.DB,
	taskID uuid.UUID,
) ([]SubmissionWithTeam, error) {
	ctx, span := tracer.Start(ctx, "SubmissionsForTask")
	defer span.End()

	span.SetAttributes(attribute.String("task.id", taskID.String()))

	var rows []SubmissionWithTeam
	err := db.WithContext(ctx).
		Model(&Submission{}).
		Select("submissions.*, teams.name AS team_name").
		Joins("JOIN teams ON teams.id = submissions.team_id").
		Where("submissions.task_id = ?", taskID).
		Order("submissions.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions for task")
		return nil, fmt.Errorf("failed to list submissions for task: %w", err)
	}

	span.SetAttributes(attribute.Int("submissions.count", len(rows)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions for task")
	return rows, nil
}
