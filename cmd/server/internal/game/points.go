package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/audit"
	"github.com/roadrallyhq/rally-api/internal/types"
)

// Manual ledger correction by an organizer. Positive delta awards, negative
// claws back.
func (s *Service) AdjustPoints(
	ctx context.Context,
	teamID uuid.UUID,
	delta int,
	reason string,
) (*types.PointsResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.AdjustPoints")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.Int("delta", delta),
	)

	var total int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "Service.AdjustPoints/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		result := tx.Model(&models.Team{}).
			Where("id = ?", teamID).
			Update("points", gorm.Expr("points + ?", delta))
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to adjust points")
			return fmt.Errorf("failed to adjust points: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			span.SetStatus(codes.Ok, "team not found")
			return types.ErrNotFound
		}

		team, err := models.ByID[models.Team](ctx, tx, teamID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read back total")
			return err
		}
		total = team.Points

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "adjusted points")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to adjust points")
		return nil, err
	}

	teamStr := teamID.String()
	audit.LogPointsAdjusted(
		audit.Context{TeamID: &teamStr, GameID: s.gameID},
		delta,
		total,
		reason,
	)

	s.notifyAdjustment(ctx, teamID, delta, total, reason)

	span.SetAttributes(attribute.Int("total", total))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "adjusted points")
	return &types.PointsResponse{TeamID: teamStr, Points: total}, nil
}

// DMs every member of the team about a manual adjustment. Best effort, a
// missed message never unwinds the ledger change.
func (s *Service) notifyAdjustment(
	ctx context.Context,
	teamID uuid.UUID,
	delta int,
	total int,
	reason string,
) {
	ctx, span := tracer.Start(ctx, "Service.notifyAdjustment")
	defer span.End()

	memberIDs, err := models.MemberIDsForTeam(ctx, s.db, teamID)
	if err != nil {
		span.RecordError(err)
		span.AddEvent("failed to list members, skipping notifications")
		return
	}

	var text string
	if delta >= 0 {
		text = fmt.Sprintf("Your team was awarded %d points.", delta)
	} else {
		text = fmt.Sprintf("Your team was docked %d points.", -delta)
	}
	if reason != "" {
		text += " Reason: " + reason
	}
	text += fmt.Sprintf(" New total: %d.", total)

	for _, memberID := range memberIDs {
		if err := s.gateway.NotifyUser(ctx, memberID, text); err != nil {
			span.RecordError(err)
			span.AddEvent("failed to notify member, continuing")
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "notified team")
}

func (s *Service) Points(ctx context.Context, teamID uuid.UUID) (*types.PointsResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.Points")
	defer span.End()

	team, err := models.ByID[models.Team](ctx, s.db, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "team not found")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get team")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got points")
	return &types.PointsResponse{TeamID: team.ID.String(), Points: team.Points}, nil
}

// Standings for players. Hidden is a state, not an error of computation, but
// it surfaces as a domain error so the relay renders the right message.
func (s *Service) Leaderboard(ctx context.Context) ([]types.LeaderboardEntry, error) {
	ctx, span := tracer.Start(ctx, "Service.Leaderboard")
	defer span.End()

	session, err := models.CurrentGameSession(ctx, s.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game session")
		return nil, err
	}

	if !session.LeaderboardVisible {
		span.SetStatus(codes.Ok, "leaderboard is hidden")
		return nil, types.ErrLeaderboardHidden
	}

	rows, err := models.LeaderboardRows(ctx, s.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query leaderboard")
		return nil, err
	}

	entries := make([]types.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, types.LeaderboardEntry{
			TeamName: row.TeamName,
			Points:   row.Points,
		})
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "built leaderboard")
	return entries, nil
}
