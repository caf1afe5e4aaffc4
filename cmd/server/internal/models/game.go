package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// Singleton row holding the shared game state. Migrations seed it; code only
// ever updates it.
type GameSession struct {
	Model
	ActiveLocation     int  `gorm:"default:0"`
	LeaderboardVisible bool `gorm:"default:true"`
}

func (GameSession) TableName() string {
	return "game_session"
}

func (g GameSession) GetID() uuid.UUID {
	return g.ID
}

func CurrentGameSession(ctx context.Context, db *gorm.DB) (*GameSession, error) {
	ctx, span := tracer.Start(ctx, "CurrentGameSession")
	defer span.End()

	var session GameSession
	err := db.WithContext(ctx).Order("created_at ASC").First(&session).Error
	if err != nil {
		// the seed row should always exist, create one if a fresh test
		// database skipped the seed
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.AddEvent("seeding missing game session row")
			session = GameSession{LeaderboardVisible: true}
			if createErr := db.WithContext(ctx).Create(&session).Error; createErr != nil {
				span.RecordError(createErr)
				span.SetStatus(codes.Error, "failed to seed game session")
				return nil, fmt.Errorf("failed to seed game session: %w", createErr)
			}
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "seeded game session")
			return &session, nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game session")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "got game session")
	return &session, nil
}

func SetActiveLocation(ctx context.Context, db *gorm.DB, location int) error {
	ctx, span := tracer.Start(ctx, "SetActiveLocation")
	defer span.End()

	span.SetAttributes(attribute.Int("location", location))

	session, err := CurrentGameSession(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game session")
		return err
	}

	err = db.WithContext(ctx).
		Model(session).
		Update("active_location", location).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set active location")
		return fmt.Errorf("failed to set active location: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "set active location")
	return nil
}

// Flips leaderboard visibility and returns the new value.
func ToggleLeaderboardVisible(ctx context.Context, db *gorm.DB) (bool, error) {
	ctx, span := tracer.Start(ctx, "ToggleLeaderboardVisible")
	defer span.End()

	session, err := CurrentGameSession(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game session")
		return false, err
	}

	visible := !session.LeaderboardVisible
	err = db.WithContext(ctx).
		Model(session).
		Update("leaderboard_visible", visible).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to toggle leaderboard")
		return false, fmt.Errorf("failed to toggle leaderboard: %w", err)
	}

	span.SetAttributes(attribute.Bool("leaderboard.visible", visible))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "toggled leaderboard")
	return visible, nil
}
