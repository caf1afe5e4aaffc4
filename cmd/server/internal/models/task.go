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

type Task struct {
	Description string
	Model
	Location  int `gorm:"index"`
	MaxPoints int
	// Judged tasks require a moderator scored accept; unjudged tasks award
	// MaxPoints outright.
	Judged bool
}

func (Task) TableName() string {
	return "tasks"
}

func (t Task) GetID() uuid.UUID {
	return t.ID
}

type TaskWithStatus struct {
	Task
	Status types.SubmissionStatus
}

func TasksForLocation(ctx context.Context, db *gorm.DB, location int) ([]Task, error) {
	ctx, span := tracer.Start(ctx, "TasksForLocation")
	defer span.End()

	span.SetAttributes(attribute.Int("location", location))

	var tasks []Task
	err := db.WithContext(ctx).
		Where("location = ?", location).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list tasks for location")
		return nil, fmt.Errorf("failed to list tasks for location: %w", err)
	}

	span.SetAttributes(attribute.Int("tasks.count", len(tasks)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed tasks for location")
	return tasks, nil
}

func CountTasksAtLocation(ctx context.Context, db *gorm.DB, location int) (int64, error) {
	ctx, span := tracer.Start(ctx, "CountTasksAtLocation")
	defer span.End()

	span.SetAttributes(attribute.Int("location", location))

	var count int64
	err := db.WithContext(ctx).Model(&Task{}).Where("location = ?", location).Count(&count).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count tasks at location")
		return 0, fmt.Errorf("failed to count tasks at location: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "counted tasks at location")
	return count, nil
}

// Tasks at a location annotated with the given team's submission status. A
// task the team never submitted reports the not_submitted sentinel rather
// than omitting a row.
func TasksWithStatusForTeam(
	ctx context.Context,
	db *gorm.DB,
	location int,
	teamID uuid.UUID,
) ([]TaskWithStatus, error) {
	ctx, span := tracer.Start(ctx, "TasksWithStatusForTeam")
	defer span.End()

	span.SetAttributes(
		attribute.Int("location", location),
		attribute.String("team.id", teamID.String()),
	)

	var rows []TaskWithStatus
	err := db.WithContext(ctx).
		Model(&Task{}).
		Select(
			"tasks.*, COALESCE(submissions.status, ?) AS status",
			string(types.SubmissionStatusNotSubmitted),
		).
		Joins(
			"LEFT JOIN submissions ON submissions.task_id = tasks.id AND submissions.team_id = ?",
			teamID,
		).
		Where("tasks.location = ?", location).
		Order("tasks.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list tasks with status")
		return nil, fmt.Errorf("failed to list tasks with status: %w", err)
	}

	span.SetAttributes(attribute.Int("tasks.count", len(rows)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed tasks with status")
	return rows, nil
}

func AllTasks(ctx context.Context, db *gorm.DB) ([]Task, error) {
	ctx, span := tracer.Start(ctx, "AllTasks")
	defer span.End()

	var tasks []Task
	err := db.WithContext(ctx).Order("location ASC, created_at ASC").Find(&tasks).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list tasks")
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed tasks")
	return tasks, nil
}
