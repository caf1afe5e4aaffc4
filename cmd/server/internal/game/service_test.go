package game_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/game"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/internal/platform"
	"github.com/roadrallyhq/rally-api/internal/types"
)

// Gateway fake that records traffic instead of talking to the platform.
// Setting updateErr makes artifact updates fail without recording them.
type recordingGateway struct {
	notifications   map[string][]string
	artifactUpdates []string
	posts           int
	updateErr       error
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{notifications: map[string][]string{}}
}

func (g *recordingGateway) NotifyUser(_ context.Context, userID string, text string) error {
	g.notifications[userID] = append(g.notifications[userID], text)
	return nil
}

func (g *recordingGateway) PostToModerationChannel(_ context.Context, _ platform.ModerationPost) (string, error) {
	g.posts++
	return fmt.Sprintf("chan/msg-%d", g.posts), nil
}

func (g *recordingGateway) UpdateArtifact(_ context.Context, ref string, _ platform.ArtifactUpdate) error {
	if g.updateErr != nil {
		return g.updateErr
	}
	g.artifactUpdates = append(g.artifactUpdates, ref)
	return nil
}

type fakeOpener struct {
	opened []game.OpenRequest
}

func (o *fakeOpener) Open(_ context.Context, req game.OpenRequest) (string, error) {
	o.opened = append(o.opened, req)
	return fmt.Sprintf("chan/artifact-%d", len(o.opened)), nil
}

type fixture struct {
	db      *gorm.DB
	service *game.Service
	gateway *recordingGateway
	opener  *fakeOpener
}

func newFixture(t *testing.T, enforceLocation bool) *fixture {
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

	gateway := newRecordingGateway()
	service := game.NewService(db, gateway, nil, "test-game", enforceLocation)
	opener := &fakeOpener{}
	service.SetArtifactOpener(opener)

	return &fixture{db: db, service: service, gateway: gateway, opener: opener}
}

func (f *fixture) team(t *testing.T, name string, memberIDs ...string) *models.Team {
	t.Helper()

	team, _, _, err := models.CreateTeamWithMembers(context.Background(), f.db, name, memberIDs)
	require.NoError(t, err)
	return team
}

func (f *fixture) task(t *testing.T, location, maxPoints int, judged bool) *models.Task {
	t.Helper()

	task := models.Task{
		Location:    location,
		Description: fmt.Sprintf("Task at location %d", location),
		MaxPoints:   maxPoints,
		Judged:      judged,
	}
	require.NoError(t, f.db.Create(&task).Error)
	return &task
}

func (f *fixture) submission(t *testing.T, team *models.Team, task *models.Task) *models.Submission {
	t.Helper()

	submission, err := models.SubmissionForTeamTask(context.Background(), f.db, team.ID, task.ID)
	require.NoError(t, err)
	return submission
}

func intPtr(i int) *int { return &i }

func mustParseUUID(t *testing.T, raw string) uuid.UUID {
	t.Helper()

	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	return id
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstSubmitCreatesPending", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		resp, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SubmitActionSubmitted, resp.Action)
		assert.Equal(t, team.ID.String(), resp.TeamID)

		submission := f.submission(t, team, task)
		assert.Equal(t, types.SubmissionStatusPending, submission.Status)
	})

	t.Run("UnknownMember", func(t *testing.T) {
		f := newFixture(t, false)
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "nobody", task.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("AcceptedIsTerminal", func(t *testing.T) {
		f := newFixture(t, false)
		f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		resp, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		teamID := mustParseUUID(t, resp.TeamID)
		_, err = f.service.Decide(ctx, teamID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		require.NoError(t, err)

		_, err = f.service.Submit(ctx, "player-1", task.ID)
		assert.ErrorIs(t, err, types.ErrAlreadyAccepted)
	})

	t.Run("ResubmitAfterDenyResetsEvidence", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		_, err = f.service.AttachEvidence(ctx, "player-1", task.ID, "https://cdn.example.com/a.png", "image")
		require.NoError(t, err)

		reason := "blurry photo"
		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionDeny, "mod-1", nil, &reason)
		require.NoError(t, err)

		resp, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SubmitActionResubmitted, resp.Action)

		submission := f.submission(t, team, task)
		assert.Equal(t, types.SubmissionStatusPending, submission.Status)
		assert.Nil(t, submission.EvidenceURL, "evidence should be cleared on resubmit")
		assert.Nil(t, submission.ArtifactRef, "artifact ref should be cleared on resubmit")
	})

	t.Run("ResubmitWhilePendingDisablesStaleArtifact", func(t *testing.T) {
		f := newFixture(t, false)
		f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)
		evidence, err := f.service.AttachEvidence(ctx, "player-1", task.ID, "https://cdn.example.com/a.png", "image")
		require.NoError(t, err)

		resp, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)
		assert.Equal(t, types.SubmitActionResubmitted, resp.Action)
		assert.Contains(t, f.gateway.artifactUpdates, evidence.ArtifactRef,
			"the stale review artifact should lose its controls")
	})

	t.Run("LocationPolicyEnforced", func(t *testing.T) {
		f := newFixture(t, true)
		f.team(t, "Team", "player-1")
		activeTask := f.task(t, 1, 10, false)
		inactiveTask := f.task(t, 2, 10, false)

		_, err := f.service.StartLocation(ctx, 1)
		require.NoError(t, err)

		_, err = f.service.Submit(ctx, "player-1", inactiveTask.ID)
		assert.ErrorIs(t, err, types.ErrLocationNotActive)

		_, err = f.service.Submit(ctx, "player-1", activeTask.ID)
		assert.NoError(t, err)
	})
}

func TestAttachEvidence(t *testing.T) {
	ctx := context.Background()

	t.Run("OpensArtifactAndStoresRefs", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 25, true)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		resp, err := f.service.AttachEvidence(ctx, "player-1", task.ID, "https://cdn.example.com/a.png", "image")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.ArtifactRef)

		require.Len(t, f.opener.opened, 1)
		opened := f.opener.opened[0]
		assert.Equal(t, "Team", opened.TeamName)
		assert.True(t, opened.Judged)
		assert.Equal(t, 25, opened.MaxPoints)

		submission := f.submission(t, team, task)
		require.NotNil(t, submission.EvidenceURL)
		assert.Equal(t, "https://cdn.example.com/a.png", *submission.EvidenceURL)
		require.NotNil(t, submission.ArtifactRef)
		assert.Equal(t, resp.ArtifactRef, *submission.ArtifactRef)
	})

	t.Run("RequiresPendingSubmission", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.AttachEvidence(ctx, "player-1", task.ID, "https://cdn.example.com/a.png", "image")
		assert.ErrorIs(t, err, types.ErrNotFound, "no submission yet")

		_, err = f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)
		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		require.NoError(t, err)

		_, err = f.service.AttachEvidence(ctx, "player-1", task.ID, "https://cdn.example.com/a.png", "image")
		assert.ErrorIs(t, err, types.ErrNotPending, "accepted submission cannot take evidence")
	})

	t.Run("RejectsBadEvidenceURL", func(t *testing.T) {
		f := newFixture(t, false)
		f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		_, err = f.service.AttachEvidence(ctx, "player-1", task.ID, "not a url", "image")
		assert.Error(t, err)
	})
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("UnjudgedAcceptAwardsMaxPoints", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1", "player-2")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		resp, err := f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusAccepted, resp.Status)
		require.NotNil(t, resp.Awarded)
		assert.Equal(t, 10, *resp.Awarded)

		points, err := f.service.Points(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, points.Points)

		assert.Len(t, f.gateway.notifications["player-1"], 1, "every member should hear about the accept")
		assert.Len(t, f.gateway.notifications["player-2"], 1)
	})

	t.Run("JudgedAcceptUsesModeratorScore", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 25, true)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		resp, err := f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", intPtr(17), nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Awarded)
		assert.Equal(t, 17, *resp.Awarded)

		points, err := f.service.Points(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, 17, points.Points)
	})

	t.Run("JudgedAcceptValidatesScore", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 25, true)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		assert.ErrorIs(t, err, types.ErrInvalidScore, "judged accept needs a score")

		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", intPtr(26), nil)
		assert.ErrorIs(t, err, types.ErrInvalidScore, "score above the bound")

		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", intPtr(-1), nil)
		assert.ErrorIs(t, err, types.ErrInvalidScore, "negative score")

		// the failed attempts must not have consumed the pending state
		resp, err := f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", intPtr(25), nil)
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusAccepted, resp.Status)
	})

	t.Run("DenyAwardsNothing", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		reason := "wrong fountain"
		resp, err := f.service.Decide(ctx, team.ID, task.ID, types.DecisionDeny, "mod-1", nil, &reason)
		require.NoError(t, err)
		assert.Equal(t, types.SubmissionStatusDenied, resp.Status)
		assert.Nil(t, resp.Awarded)

		points, err := f.service.Points(ctx, team.ID)
		require.NoError(t, err)
		assert.Zero(t, points.Points)

		require.Len(t, f.gateway.notifications["player-1"], 1)
		assert.Contains(t, f.gateway.notifications["player-1"][0], "wrong fountain")
	})

	t.Run("SecondDecisionIsRejected", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)

		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		require.NoError(t, err)

		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionDeny, "mod-2", nil, nil)
		assert.ErrorIs(t, err, types.ErrAlreadyDecided)

		points, err := f.service.Points(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, points.Points, "the double decision must not touch points")
	})

	t.Run("StaleClickDisablesControls", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Submit(ctx, "player-1", task.ID)
		require.NoError(t, err)
		evidence, err := f.service.AttachEvidence(ctx, "player-1", task.ID, "https://cdn.example.com/a.png", "image")
		require.NoError(t, err)

		// the platform is down while the accept lands, so the artifact
		// keeps its controls
		f.gateway.updateErr = fmt.Errorf("platform unavailable")
		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, f.gateway.artifactUpdates)

		f.gateway.updateErr = nil
		_, err = f.service.Decide(ctx, team.ID, task.ID, types.DecisionDeny, "mod-2", nil, nil)
		assert.ErrorIs(t, err, types.ErrAlreadyDecided)
		assert.Contains(t, f.gateway.artifactUpdates, evidence.ArtifactRef,
			"a stale click should strip the leftover controls")
	})

	t.Run("NoSubmission", func(t *testing.T) {
		f := newFixture(t, false)
		team := f.team(t, "Team", "player-1")
		task := f.task(t, 1, 10, false)

		_, err := f.service.Decide(ctx, team.ID, task.ID, types.DecisionAccept, "mod-1", nil, nil)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestAdjustPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	team := f.team(t, "Team", "player-1", "player-2")

	resp, err := f.service.AdjustPoints(ctx, team.ID, 15, "bonus for style")
	require.NoError(t, err)
	assert.Equal(t, 15, resp.Points)

	require.Len(t, f.gateway.notifications["player-1"], 1, "every member should hear about the adjustment")
	require.Len(t, f.gateway.notifications["player-2"], 1)
	assert.Contains(t, f.gateway.notifications["player-1"][0], "15")
	assert.Contains(t, f.gateway.notifications["player-1"][0], "bonus for style")

	resp, err = f.service.AdjustPoints(ctx, team.ID, -5, "penalty")
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Points)

	require.Len(t, f.gateway.notifications["player-2"], 2)
	assert.Contains(t, f.gateway.notifications["player-2"][1], "docked 5")
	assert.Contains(t, f.gateway.notifications["player-2"][1], "penalty")

	t.Run("MissingTeam", func(t *testing.T) {
		_, err := f.service.AdjustPoints(ctx, mustParseUUID(t, "00000000-0000-0000-0000-000000000001"), 5, "x")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	f.team(t, "Alpha", "a-1")
	beta := f.team(t, "Beta", "b-1")
	_, err := f.service.AdjustPoints(ctx, beta.ID, 30, "head start")
	require.NoError(t, err)

	entries, err := f.service.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Beta", entries[0].TeamName)

	t.Run("HiddenLeaderboard", func(t *testing.T) {
		visible, err := f.service.ToggleLeaderboard(ctx)
		require.NoError(t, err)
		require.False(t, visible)

		_, err = f.service.Leaderboard(ctx)
		assert.ErrorIs(t, err, types.ErrLeaderboardHidden)
	})
}

func TestStartLocation(t *testing.T) {
	ctx := context.Background()

	t.Run("RefusesEmptyLocation", func(t *testing.T) {
		f := newFixture(t, false)

		_, err := f.service.StartLocation(ctx, 7)
		assert.ErrorIs(t, err, types.ErrNoTasksAtLocation)
	})

	t.Run("ActivatesAndAnnounces", func(t *testing.T) {
		f := newFixture(t, false)
		f.team(t, "Team", "player-1")
		f.task(t, 2, 10, false)
		f.task(t, 2, 20, true)

		count, err := f.service.StartLocation(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		state, err := f.service.GameState(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, state.ActiveLocation)

		require.Len(t, f.gateway.notifications["player-1"], 1)
		assert.Contains(t, f.gateway.notifications["player-1"][0], "Location 2")
	})
}

func TestTasksForMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.team(t, "Team", "player-1")
	task := f.task(t, 1, 10, false)
	f.task(t, 1, 20, false)

	_, err := f.service.StartLocation(ctx, 1)
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, "player-1", task.ID)
	require.NoError(t, err)

	rows, err := f.service.TasksForMember(ctx, "player-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	statuses := map[string]types.SubmissionStatus{}
	for _, row := range rows {
		statuses[row.ID.String()] = row.Status
	}
	assert.Equal(t, types.SubmissionStatusPending, statuses[task.ID.String()])
}
