package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/audit"
	"github.com/roadrallyhq/rally-api/internal/types"
)

func (s *Service) CreateTeam(
	ctx context.Context,
	name string,
	memberIDs []string,
) (*types.CreateTeamResponse, error) {
	ctx, span := tracer.Start(ctx, "Service.CreateTeam")
	defer span.End()

	span.SetAttributes(attribute.String("team.name", name))

	team, added, skipped, err := models.CreateTeamWithMembers(ctx, s.db, name, memberIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create team")
		return nil, err
	}

	teamStr := team.ID.String()
	audit.LogTeamCreated(
		audit.Context{TeamID: &teamStr, GameID: s.gameID},
		name,
		added,
		skipped,
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created team")
	return &types.CreateTeamResponse{
		TeamID:  teamStr,
		Added:   added,
		Skipped: skipped,
	}, nil
}

func (s *Service) RemoveTeam(ctx context.Context, teamID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "Service.RemoveTeam")
	defer span.End()

	span.SetAttributes(attribute.String("team.id", teamID.String()))

	team, err := models.ByID[models.Team](ctx, s.db, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Ok, "team not found")
			return types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get team")
		return err
	}

	if err := models.RemoveTeam(ctx, s.db, teamID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove team")
		return err
	}

	teamStr := teamID.String()
	audit.LogTeamRemoved(audit.Context{TeamID: &teamStr, GameID: s.gameID}, team.Name)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "removed team")
	return nil
}

// Team roster listing for organizers.
func (s *Service) ListTeams(ctx context.Context) ([]types.TeamListEntry, error) {
	ctx, span := tracer.Start(ctx, "Service.ListTeams")
	defer span.End()

	teams, err := models.AllTeams(ctx, s.db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list teams")
		return nil, err
	}

	entries := make([]types.TeamListEntry, 0, len(teams))
	for _, team := range teams {
		memberIDs, err := models.MemberIDsForTeam(ctx, s.db, team.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to list members")
			return nil, err
		}

		entries = append(entries, types.TeamListEntry{
			TeamID:  team.ID.String(),
			Name:    team.Name,
			Points:  team.Points,
			Members: memberIDs,
		})
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed teams")
	return entries, nil
}
