package review_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/game"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/review"
	"github.com/roadrallyhq/rally-api/internal/platform"
	"github.com/roadrallyhq/rally-api/internal/types"
)

// Setting updateErr makes artifact updates fail without recording them.
// DMs are guarded by a mutex so tests can poll them while an exchange runs.
type stubGateway struct {
	mu        sync.Mutex
	dms       map[string][]string
	updates   []string
	posts     int
	updateErr error
}

func newStubGateway() *stubGateway {
	return &stubGateway{dms: map[string][]string{}}
}

func (g *stubGateway) NotifyUser(_ context.Context, userID string, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dms[userID] = append(g.dms[userID], text)
	return nil
}

func (g *stubGateway) dmCount(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.dms[userID])
}

func (g *stubGateway) PostToModerationChannel(_ context.Context, _ platform.ModerationPost) (string, error) {
	g.posts++
	return fmt.Sprintf("chan/msg-%d", g.posts), nil
}

func (g *stubGateway) UpdateArtifact(_ context.Context, ref string, _ platform.ArtifactUpdate) error {
	if g.updateErr != nil {
		return g.updateErr
	}
	g.updates = append(g.updates, ref)
	return nil
}

type fixture struct {
	db      *gorm.DB
	service *game.Service
	manager *review.Manager
	gateway *stubGateway
	team    *models.Team
	task    *models.Task
}

func newFixture(t *testing.T, judged bool, maxPoints int, timeout time.Duration) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Team{},
		&models.Member{},
		&models.Task{},
		&models.Submission{},
		&models.GameSession{},
	))

	gateway := newStubGateway()
	service := game.NewService(db, gateway, nil, "test-game", false)
	manager := review.NewManager(service, gateway, timeout)
	service.SetArtifactOpener(manager)

	team, _, _, err := models.CreateTeamWithMembers(context.Background(), db, "Team", []string{"player-1"})
	require.NoError(t, err)

	task := models.Task{Location: 1, Description: "Task", MaxPoints: maxPoints, Judged: judged}
	require.NoError(t, db.Create(&task).Error)

	_, err = service.Submit(context.Background(), "player-1", task.ID)
	require.NoError(t, err)
	_, err = service.AttachEvidence(context.Background(), "player-1", task.ID, "https://cdn.example.com/a.png", "image")
	require.NoError(t, err)

	return &fixture{db: db, service: service, manager: manager, gateway: gateway, team: team, task: &task}
}

// Retries Deliver until the manager has registered its waiter.
func deliverEventually(t *testing.T, f *fixture, moderatorID string, kind types.Decision, content string) {
	t.Helper()

	require.Eventually(t, func() bool {
		err := f.manager.Deliver(context.Background(), f.team.ID, f.task.ID, moderatorID, kind, content)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHandleDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("UnjudgedAcceptDecidesImmediately", func(t *testing.T) {
		f := newFixture(t, false, 10, time.Second)

		resp, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusAccepted, resp.Status)
		require.NotNil(t, resp.Awarded)
		assert.Equal(t, 10, *resp.Awarded)
	})

	t.Run("JudgedAcceptCollectsScore", func(t *testing.T) {
		f := newFixture(t, true, 25, 2*time.Second)

		type result struct {
			resp *types.DecisionResponse
			err  error
		}
		done := make(chan result, 1)
		go func() {
			resp, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
			done <- result{resp, err}
		}()

		deliverEventually(t, f, "mod-1", types.DecisionAccept, "18")

		got := <-done
		require.NoError(t, got.err)
		assert.Equal(t, types.SubmissionStatusAccepted, got.resp.Status)
		require.NotNil(t, got.resp.Awarded)
		assert.Equal(t, 18, *got.resp.Awarded)
	})

	t.Run("InvalidScoreIsRepromptedNotFatal", func(t *testing.T) {
		f := newFixture(t, true, 25, 2*time.Second)

		done := make(chan error, 1)
		go func() {
			_, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
			done <- err
		}()

		deliverEventually(t, f, "mod-1", types.DecisionAccept, "ninety")
		deliverEventually(t, f, "mod-1", types.DecisionAccept, "99")
		deliverEventually(t, f, "mod-1", types.DecisionAccept, "20")

		require.NoError(t, <-done)

		submission, err := models.SubmissionForTeamTask(ctx, f.db, f.team.ID, f.task.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusAccepted, submission.Status)

		prompts := f.gateway.dms["mod-1"]
		assert.GreaterOrEqual(t, len(prompts), 3, "initial prompt plus two re-prompts")
	})

	t.Run("DenyCollectsReason", func(t *testing.T) {
		f := newFixture(t, false, 10, 2*time.Second)

		done := make(chan error, 1)
		go func() {
			resp, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionDeny, "mod-1")
			if err == nil && resp.Status != types.SubmissionStatusDenied {
				err = fmt.Errorf("unexpected status %s", resp.Status)
			}
			done <- err
		}()

		deliverEventually(t, f, "mod-1", types.DecisionDeny, "duplicate photo")

		require.NoError(t, <-done)

		notices := f.gateway.dms["player-1"]
		require.NotEmpty(t, notices)
		assert.Contains(t, notices[len(notices)-1], "duplicate photo")
	})

	t.Run("TimeoutLeavesSubmissionPending", func(t *testing.T) {
		f := newFixture(t, true, 25, 50*time.Millisecond)

		_, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
		assert.ErrorIs(t, err, types.ErrReviewTimeout)

		submission, err := models.SubmissionForTeamTask(ctx, f.db, f.team.ID, f.task.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusPending, submission.Status,
			"a timed out review must not consume the submission")
	})

	t.Run("AlreadyDecided", func(t *testing.T) {
		f := newFixture(t, false, 10, time.Second)

		_, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
		require.NoError(t, err)

		_, err = f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionDeny, "mod-2")
		assert.ErrorIs(t, err, types.ErrAlreadyDecided)
	})

	t.Run("StaleClickDisablesLeftoverControls", func(t *testing.T) {
		f := newFixture(t, false, 10, time.Second)

		// the platform is down while the accept lands, so the artifact
		// keeps its controls
		f.gateway.updateErr = fmt.Errorf("platform unavailable")
		_, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
		require.NoError(t, err)
		assert.Empty(t, f.gateway.updates)

		f.gateway.updateErr = nil
		_, err = f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionDeny, "mod-2")
		assert.ErrorIs(t, err, types.ErrAlreadyDecided)
		assert.NotEmpty(t, f.gateway.updates, "a stale click should strip the leftover controls")
	})
}

func TestDeliver(t *testing.T) {
	ctx := context.Background()

	t.Run("NoActiveReview", func(t *testing.T) {
		f := newFixture(t, true, 25, time.Second)

		err := f.manager.Deliver(ctx, f.team.ID, f.task.ID, "mod-1", types.DecisionAccept, "10")
		assert.ErrorIs(t, err, types.ErrReviewNotActionable)
	})

	t.Run("WrongModerator", func(t *testing.T) {
		f := newFixture(t, true, 25, 2*time.Second)

		done := make(chan error, 1)
		go func() {
			_, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
			done <- err
		}()

		var wrongErr error
		require.Eventually(t, func() bool {
			wrongErr = f.manager.Deliver(ctx, f.team.ID, f.task.ID, "mod-2", types.DecisionAccept, "10")
			return wrongErr != types.ErrReviewNotActionable
		}, 2*time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, wrongErr, types.ErrUnauthorized, "another moderator cannot answer the prompt")

		deliverEventually(t, f, "mod-1", types.DecisionAccept, "10")
		require.NoError(t, <-done)
	})

	t.Run("WrongDecisionKind", func(t *testing.T) {
		f := newFixture(t, true, 25, 2*time.Second)

		done := make(chan error, 1)
		go func() {
			_, err := f.manager.HandleDecision(ctx, f.team.ID, f.task.ID, types.DecisionAccept, "mod-1")
			done <- err
		}()

		// the score prompt is sent after the waiter registers
		require.Eventually(t, func() bool {
			return f.gateway.dmCount("mod-1") > 0
		}, 2*time.Second, 5*time.Millisecond)

		err := f.manager.Deliver(ctx, f.team.ID, f.task.ID, "mod-1", types.DecisionDeny, "10")
		assert.ErrorIs(t, err, types.ErrReviewNotActionable,
			"a deny-tagged message cannot feed the score exchange")

		deliverEventually(t, f, "mod-1", types.DecisionAccept, "10")
		require.NoError(t, <-done)
	})
}
