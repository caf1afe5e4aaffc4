package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// A platform user enrolled on a team. The unique index on PlatformUserID is
// what enforces one team per user.
type Member struct {
	PlatformUserID string `gorm:"uniqueIndex"`
	Model
	TeamID uuid.UUID `gorm:"index"`
}

func (Member) TableName() string {
	return "members"
}

func (m Member) GetID() uuid.UUID {
	return m.ID
}

// Resolves the team a platform user belongs to. Returns
// [gorm.ErrRecordNotFound] for users on no team.
func TeamForMember(ctx context.Context, db *gorm.DB, platformUserID string) (*Team, error) {
	ctx, span := tracer.Start(ctx, "TeamForMember")
	defer span.End()

	span.SetAttributes(attribute.String("member.platform_user_id", platformUserID))

	db = db.WithContext(ctx)

	var member Member
	span.AddEvent("resolving member row")
	if err := db.First(&member, "platform_user_id = ?", platformUserID).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve member")
		return nil, err
	}

	span.AddEvent("resolving team row")
	team, err := ByID[Team](ctx, db, member.TeamID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve team")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved team for member")
	return team, nil
}

func MemberIDsForTeam(ctx context.Context, db *gorm.DB, teamID uuid.UUID) ([]string, error) {
	ctx, span := tracer.Start(ctx, "MemberIDsForTeam")
	defer span.End()

	span.SetAttributes(attribute.String("team.id", teamID.String()))

	var ids []string
	err := db.WithContext(ctx).
		Model(&Member{}).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Pluck("platform_user_id", &ids).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list members")
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed members")
	return ids, nil
}
