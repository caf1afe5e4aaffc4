package game

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/audit"
	"github.com/roadrallyhq/rally-api/internal/types"
)

func (s *Service) CreateTask(
	ctx context.Context,
	req types.CreateTaskRequest,
) (*models.Task, error) {
	ctx, span := tracer.Start(ctx, "Service.CreateTask")
	defer span.End()

	span.SetAttributes(
		attribute.Int("location", req.Location),
		attribute.Int("max_points", req.MaxPoints),
		attribute.Bool("judged", req.Judged),
	)

	task := models.Task{
		Location:    req.Location,
		Description: req.Description,
		MaxPoints:   req.MaxPoints,
		Judged:      req.Judged,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create task")
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	taskStr := task.ID.String()
	audit.LogTaskCreated(
		audit.Context{TaskID: &taskStr, GameID: s.gameID},
		req.Location,
		req.Description,
		req.MaxPoints,
		req.Judged,
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created task")
	return &task, nil
}

// Bulk task creation from the organizer sheet. All or nothing, a failed row
// rolls back the whole batch.
func (s *Service) ImportTasks(
	ctx context.Context,
	reqs []types.CreateTaskRequest,
) (int, error) {
	ctx, span := tracer.Start(ctx, "Service.ImportTasks")
	defer span.End()

	span.SetAttributes(attribute.Int("tasks.count", len(reqs)))

	tasks := make([]*models.Task, 0, len(reqs))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "Service.ImportTasks/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		for _, req := range reqs {
			task := models.Task{
				Location:    req.Location,
				Description: req.Description,
				MaxPoints:   req.MaxPoints,
				Judged:      req.Judged,
			}
			if err := tx.Create(&task).Error; err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to create task")
				return fmt.Errorf("failed to create task: %w", err)
			}
			tasks = append(tasks, &task)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "imported tasks")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to import tasks")
		return 0, err
	}

	for i, task := range tasks {
		taskStr := task.ID.String()
		audit.LogTaskCreated(
			audit.Context{TaskID: &taskStr, GameID: s.gameID},
			reqs[i].Location,
			reqs[i].Description,
			reqs[i].MaxPoints,
			reqs[i].Judged,
		)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "imported tasks")
	return len(tasks), nil
}

// Submissions for a task with team names, for the moderator listing.
func (s *Service) SubmissionsForTask(
	ctx context.Context,
	task *models.Task,
) ([]types.SubmissionListEntry, error) {
	ctx, span := tracer.Start(ctx, "Service.SubmissionsForTask")
	defer span.End()

	rows, err := models.SubmissionsForTask(ctx, s.db, task.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list submissions")
		return nil, err
	}

	entries := make([]types.SubmissionListEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, types.SubmissionListEntry{
			TeamID:      row.TeamID.String(),
			TeamName:    row.TeamName,
			Status:      row.Status,
			EvidenceURL: row.EvidenceURL,
		})
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return entries, nil
}
