package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Team struct {
	Name string `gorm:"uniqueIndex"`
	Model
	Points int `gorm:"default:0"`
}

func (Team) TableName() string {
	return "teams"
}

func (t Team) GetID() uuid.UUID {
	return t.ID
}

type LeaderboardRow struct {
	TeamName string
	Points   int
}

// Creates a team and enrolls the given platform users as members. Users that
// already belong to a team are skipped rather than failing the whole create;
// organizers fix rosters one user at a time afterward.
func CreateTeamWithMembers(
	ctx context.Context,
	db *gorm.DB,
	name string,
	platformUserIDs []string,
) (*Team, []string, []string, error) {
	ctx, span := tracer.Start(ctx, "CreateTeamWithMembers")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.name", name),
		attribute.Int("members.requested", len(platformUserIDs)),
	)

	team := Team{Name: name}
	added := []string{}
	skipped := []string{}

	err := db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "CreateTeamWithMembers/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		span.AddEvent("creating team row")
		if err := tx.Create(&team).Error; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create team")
			return fmt.Errorf("failed to create team: %w", err)
		}

		span.AddEvent("enrolling members")
		for _, userID := range platformUserIDs {
			member := Member{PlatformUserID: userID, TeamID: team.ID}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
			if result.Error != nil {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, "failed to enroll member")
				return fmt.Errorf("failed to enroll member: %w", result.Error)
			}

			if result.RowsAffected == 0 {
				skipped = append(skipped, userID)
				continue
			}
			added = append(added, userID)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "created team")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create team with members")
		return nil, nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("members.added", len(added)),
		attribute.Int("members.skipped", len(skipped)),
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created team with members")
	return &team, added, skipped, nil
}

func RenameTeam(ctx context.Context, db *gorm.DB, teamID uuid.UUID, name string) error {
	ctx, span := tracer.Start(ctx, "RenameTeam")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.String("team.name", name),
	)

	result := db.WithContext(ctx).Model(&Team{}).Where("id = ?", teamID).Update("name", name)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to rename team")
		return fmt.Errorf("failed to rename team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		span.AddEvent("no team matched the id")
		span.SetStatus(codes.Error, "team not found")
		return gorm.ErrRecordNotFound
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "renamed team")
	return nil
}

// Removes a team along with its members and submissions. Awarded points die
// with the team row; the audit stream is the durable record.
func RemoveTeam(ctx context.Context, db *gorm.DB, teamID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "RemoveTeam")
	defer span.End()

	span.SetAttributes(attribute.String("team.id", teamID.String()))

	err := db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "RemoveTeam/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		span.AddEvent("deleting submissions")
		if err := tx.Where("team_id = ?", teamID).Delete(&Submission{}).Error; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete submissions")
			return fmt.Errorf("failed to delete submissions: %w", err)
		}

		span.AddEvent("deleting members")
		if err := tx.Where("team_id = ?", teamID).Delete(&Member{}).Error; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete members")
			return fmt.Errorf("failed to delete members: %w", err)
		}

		span.AddEvent("deleting team row")
		result := tx.Where("id = ?", teamID).Delete(&Team{})
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to delete team")
			return fmt.Errorf("failed to delete team: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			span.AddEvent("no team matched the id")
			return gorm.ErrRecordNotFound
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "removed team")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove team")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "removed team")
	return nil
}

// Standings ordered by points descending with name as the tiebreak so the
// ordering is stable between refreshes.
func LeaderboardRows(ctx context.Context, db *gorm.DB) ([]LeaderboardRow, error) {
	ctx, span := tracer.Start(ctx, "LeaderboardRows")
	defer span.End()

	var rows []LeaderboardRow
	err := db.WithContext(ctx).
		Model(&Team{}).
		Select("name AS team_name, points").
		Order("points DESC, name ASC").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query leaderboard")
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	span.SetAttributes(attribute.Int("teams.count", len(rows)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "queried leaderboard")
	return rows, nil
}

func AllTeams(ctx context.Context, db *gorm.DB) ([]Team, error) {
	ctx, span := tracer.Start(ctx, "AllTeams")
	defer span.End()

	var teams []Team
	err := db.WithContext(ctx).Order("name ASC").Find(&teams).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list teams")
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed teams")
	return teams, nil
}
