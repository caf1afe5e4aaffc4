package game

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/audit"
	"github.com/roadrallyhq/rally-api/internal/types"
)

// Opens a location for play. Refuses locations with no tasks and announces
// the new location to every enrolled member.
func (s *Service) StartLocation(ctx context.Context, location int) (int, error) {
	ctx, span := tracer.Start(ctx, "Service.StartLocation")
	defer span.End()

	span.SetAttributes(attribute.Int("location", location))

	count, err := models.CountTasksAtLocation(ctx, s.db, location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count tasks")
		return 0, err
	}

	if count == 0 {
		span.SetStatus(codes.Ok, "no tasks at location")
		return 0, types.ErrNoTasksAtLocation
	}

	if err := models.SetActiveLocation(ctx, s.db, location); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set active location")
		return 0, err
	}

	audit.LogLocationStarted(audit.Context{GameID: s.gameID}, location, int(count))

	s.announceLocation(ctx, location, int(count))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "started location")
	return int(count), nil
}

// Best effort broadcast, a missed DM does not fail the start.
func (s *Service) announceLocation(ctx context.Context, location, taskCount int) {
	ctx, span := tracer.Start(ctx, "Service.announceLocation")
	defer span.End()

	var memberIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.Member{}).
		Pluck("platform_user_id", &memberIDs).Error
	if err != nil {
		span.RecordError(err)
		span.AddEvent("failed to list members, skipping announcement")
		return
	}

	text := fmt.Sprintf("Location %d is now open with %d tasks. Go!", location, taskCount)
	for _, memberID := range memberIDs {
		if err := s.gateway.NotifyUser(ctx, memberID, text); err != nil {
			span.RecordError(err)
			span.AddEvent("failed to notify member, continuing")
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "announced location")
}

func (s *Service) ToggleLeaderboard(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "Service.ToggleLeaderboard")
	defer span.End()

	visible, err := models.ToggleLeaderboardVisible(ctx, s.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to toggle leaderboard")
		return false, err
	}

	audit.LogLeaderboardToggled(audit.Context{GameID: s.gameID}, visible)

	span.SetAttributes(attribute.Bool("leaderboard.visible", visible))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "toggled leaderboard")
	return visible, nil
}

func (s *Service) GameState(ctx context.Context) (*types.GameStateResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.GameState")
	defer span.End()

	session, err := models.CurrentGameSession(ctx, s.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game session")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got game state")
	return &types.GameStateResponse{
		ActiveLocation:     session.ActiveLocation,
		LeaderboardVisible: session.LeaderboardVisible,
	}, nil
}

// Tasks at the active location annotated with the member's team status.
func (s *Service) TasksForMember(
	ctx context.Context,
	memberID string,
) ([]models.TaskWithStatus, error) {
	ctx, span := tracer.Start(ctx, "Service.TasksForMember")
	defer span.End()

	span.SetAttributes(attribute.String("member.id", memberID))

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

	session, err := models.CurrentGameSession(ctx, s.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game session")
		return nil, err
	}

	rows, err := models.TasksWithStatusForTeam(ctx, s.db, session.ActiveLocation, team.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list tasks")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed tasks for member")
	return rows, nil
}
