package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/logger"
)

func TestAuthorization(t *testing.T) {
	l := logger.Logger
	t.Run("NeedsOneHasNone", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Relay: true},
			&models.Permissions{},
			l,
		)
		assert.False(t, hasPerm, "needs relay but does not have")
	})

	t.Run("NeedsOneHasExtra", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Relay: true},
			&models.Permissions{Relay: true, Manage: true},
			l,
		)
		assert.True(t, hasPerm, "needs relay and has it")
	})

	t.Run("NeedsManyHasMany", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Relay: true, Moderate: true},
			&models.Permissions{Relay: true, Moderate: true},
			l,
		)
		assert.True(t, hasPerm, "needs relay and moderate and has both")
	})

	t.Run("NeedsOneHasOther", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Moderate: true},
			&models.Permissions{Manage: true},
			l,
		)
		assert.False(t, hasPerm, "needs moderate but does not have it")
	})

	t.Run("HasOneNeedsOneWrongOrder", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Relay: true},
			&models.Permissions{Manage: false, Relay: true},
			l,
		)
		assert.True(t, hasPerm, "needs relay and has it")
	})
}
