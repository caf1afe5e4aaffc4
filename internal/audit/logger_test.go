package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrallyhq/rally-api/internal/types"
)

func TestDispForStatus(t *testing.T) {
	assert.Equal(t, DispositionGood, dispForStatus(types.SubmissionStatusAccepted))
	assert.Equal(t, DispositionBad, dispForStatus(types.SubmissionStatusDenied))
	assert.Equal(t, DispositionNeutral, dispForStatus(types.SubmissionStatusPending))
}

func TestDecisionEventShape(t *testing.T) {
	teamID := "team-1"
	taskID := "task-1"
	awarded := 50

	c := Context{TeamID: &teamID, TaskID: &taskID, GameID: "rally-2026"}

	event := SubmissionDecision{}
	event.Message = c.message(EvtSubmissionDecision, dispForStatus(types.SubmissionStatusAccepted))
	event.Event.SubmissionID = "sub-1"
	event.Event.Status = types.SubmissionStatusAccepted
	event.Event.ModeratorID = "mod-1"
	event.Event.Awarded = &awarded

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "submission_decision", decoded["event_type"])
	assert.Equal(t, "good", decoded["disposition"])
	assert.Equal(t, "rally-2026", decoded["game_id"])
	assert.Equal(t, "team-1", decoded["team_id"])

	inner, ok := decoded["event"].(map[string]any)
	require.True(t, ok, "event payload should be nested")
	assert.Equal(t, "accepted", inner["status"])
	assert.InDelta(t, 50, inner["awarded"], 0)
	assert.NotContains(t, inner, "reason", "reason is omitted for accepts")
}
