// Package review runs the moderator side of the submission lifecycle. It
// posts review artifacts, collects the follow-up a decision needs (a score
// for judged tasks, a reason for denials) inside a bounded wait, and hands
// the completed decision to the game service.
package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/game"
	"github.com/roadrallyhq/rally-api/internal/platform"
	"github.com/roadrallyhq/rally-api/internal/types"
	"github.com/roadrallyhq/rally-api/internal/validator"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/cmd/server/internal/review")

// Ensure Manager implements the opener interface the game service needs.
var _ game.ArtifactOpener = (*Manager)(nil)

type waitKey struct {
	TeamID uuid.UUID
	TaskID uuid.UUID
}

type waiter struct {
	ch          chan string
	moderatorID string
	kind        types.Decision
}

type Manager struct {
	service *game.Service
	gateway platform.Gateway
	waiters map[waitKey]*waiter
	// bound on every solicitation wait; a moderator who walks away does
	// not pin a submission forever
	timeout time.Duration
	mu      sync.Mutex
}

func NewManager(service *game.Service, gateway platform.Gateway, timeout time.Duration) *Manager {
	return &Manager{
		service: service,
		gateway: gateway,
		waiters: map[waitKey]*waiter{},
		timeout: timeout,
	}
}

// Open posts the review artifact for a pending submission. The control
// custom ids round-trip through the relay so a click maps back to the
// submission with no state on the relay side.
func (m *Manager) Open(ctx context.Context, req game.OpenRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Manager.Open")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", req.TeamID.String()),
		attribute.String("task.id", req.TaskID.String()),
		attribute.Bool("judged", req.Judged),
	)

	content := fmt.Sprintf("**%s** submitted evidence for %q.", req.TeamName, req.TaskDescription)
	if req.Judged {
		content += fmt.Sprintf(" Judged task, up to %d points.", req.MaxPoints)
	} else {
		content += fmt.Sprintf(" Worth %d points.", req.MaxPoints)
	}

	post := platform.ModerationPost{
		Content: content,
		Controls: []platform.Control{
			{
				Kind:     types.DecisionAccept,
				Label:    "Accept",
				CustomID: controlID(types.DecisionAccept, req.TeamID, req.TaskID),
			},
			{
				Kind:     types.DecisionDeny,
				Label:    "Deny",
				CustomID: controlID(types.DecisionDeny, req.TeamID, req.TaskID),
			},
		},
	}
	switch req.MediaKind {
	case "video":
		post.VideoURL = req.EvidenceURL
	default:
		post.ImageURL = req.EvidenceURL
	}

	span.AddEvent("posting review artifact")
	artifactRef, err := m.gateway.PostToModerationChannel(ctx, post)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post review artifact")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "opened review artifact")
	return artifactRef, nil
}

func controlID(kind types.Decision, teamID, taskID uuid.UUID) string {
	return fmt.Sprintf("decision:%s:%s:%s", kind, teamID, taskID)
}

// HandleDecision runs one moderator decision end to end. For an unjudged
// accept the decision lands immediately; judged accepts and denials first
// solicit a follow-up message from the same moderator, bounded by the
// configured timeout. A timed out wait leaves the submission pending and
// the artifact actionable.
func (m *Manager) HandleDecision(
	ctx context.Context,
	teamID uuid.UUID,
	taskID uuid.UUID,
	kind types.Decision,
	moderatorID string,
) (*types.DecisionResponse, error) {
	ctx, span := tracer.Start(ctx, "Manager.HandleDecision")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.String("task.id", taskID.String()),
		attribute.String("decision", string(kind)),
		attribute.String("moderator.id", moderatorID),
	)

	// fail fast on an already decided or missing submission before making
	// the moderator type anything
	judged, maxPoints, err := m.service.ReviewBounds(ctx, teamID, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "submission is not reviewable")
		return nil, err
	}

	switch kind {
	case types.DecisionAccept:
		if !judged {
			span.AddEvent("unjudged accept, deciding immediately")
			return m.service.Decide(ctx, teamID, taskID, kind, moderatorID, nil, nil)
		}

		score, err := m.solicitScore(ctx, teamID, taskID, moderatorID, maxPoints)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Ok, "score solicitation did not complete")
			return nil, err
		}
		return m.service.Decide(ctx, teamID, taskID, kind, moderatorID, &score, nil)

	case types.DecisionDeny:
		reason, err := m.solicitReason(ctx, teamID, taskID, moderatorID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Ok, "reason solicitation did not complete")
			return nil, err
		}
		return m.service.Decide(ctx, teamID, taskID, kind, moderatorID, nil, &reason)

	default:
		span.SetStatus(codes.Error, "unknown decision kind")
		return nil, fmt.Errorf("unknown decision kind %q", kind)
	}
}

// Deliver routes a moderator follow-up message into the waiting decision
// exchange. Messages from anyone but the moderator who started the exchange
// are rejected, as are messages tagged for a different decision kind than
// the exchange is collecting for.
func (m *Manager) Deliver(
	ctx context.Context,
	teamID uuid.UUID,
	taskID uuid.UUID,
	moderatorID string,
	kind types.Decision,
	content string,
) error {
	_, span := tracer.Start(ctx, "Manager.Deliver")
	defer span.End()

	span.SetAttributes(
		attribute.String("team.id", teamID.String()),
		attribute.String("task.id", taskID.String()),
		attribute.String("decision", string(kind)),
		attribute.String("moderator.id", moderatorID),
	)

	m.mu.Lock()
	w, ok := m.waiters[waitKey{TeamID: teamID, TaskID: taskID}]
	m.mu.Unlock()

	if !ok {
		span.SetStatus(codes.Ok, "no active review for submission")
		return types.ErrReviewNotActionable
	}

	if w.moderatorID != moderatorID {
		span.SetStatus(codes.Ok, "message from a different moderator")
		return types.ErrUnauthorized
	}

	if w.kind != kind {
		span.SetStatus(codes.Ok, "message is for a different decision kind")
		return types.ErrReviewNotActionable
	}

	select {
	case w.ch <- content:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "delivered review message")
		return nil
	default:
		// the exchange raced to completion
		span.SetStatus(codes.Ok, "review exchange no longer accepting messages")
		return types.ErrReviewNotActionable
	}
}

func (m *Manager) register(key waitKey, moderatorID string, kind types.Decision) (*waiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.waiters[key]; ok {
		return nil, types.ErrReviewInProgress
	}

	w := &waiter{ch: make(chan string, 1), moderatorID: moderatorID, kind: kind}
	m.waiters[key] = w
	return w, nil
}

func (m *Manager) unregister(key waitKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.waiters, key)
}

// Prompts the moderator for a score and re-prompts on invalid input until a
// valid score arrives or the wait times out.
func (m *Manager) solicitScore(
	ctx context.Context,
	teamID uuid.UUID,
	taskID uuid.UUID,
	moderatorID string,
	maxPoints int,
) (int, error) {
	ctx, span := tracer.Start(ctx, "Manager.solicitScore")
	defer span.End()

	key := waitKey{TeamID: teamID, TaskID: taskID}
	w, err := m.register(key, moderatorID, types.DecisionAccept)
	if err != nil {
		span.SetStatus(codes.Ok, "review exchange already active")
		return 0, err
	}
	defer m.unregister(key)

	prompt := fmt.Sprintf("Enter a score between 0 and %d for this submission.", maxPoints)
	if err := m.gateway.NotifyUser(ctx, moderatorID, prompt); err != nil {
		span.RecordError(err)
		span.AddEvent("failed to prompt moderator, still waiting")
	}

	deadline := time.NewTimer(m.timeout)
	defer deadline.Stop()

	for {
		select {
		case content := <-w.ch:
			score, ok := validator.ParseScore(strings.TrimSpace(content), maxPoints)
			if !ok {
				span.AddEvent("invalid score, re-prompting")
				reprompt := fmt.Sprintf("%q is not a score between 0 and %d. Try again.", content, maxPoints)
				if err := m.gateway.NotifyUser(ctx, moderatorID, reprompt); err != nil {
					span.RecordError(err)
				}
				continue
			}

			span.SetAttributes(attribute.Int("score", score))
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "got score")
			return score, nil

		case <-deadline.C:
			span.SetStatus(codes.Ok, "score wait timed out")
			m.notifyTimeout(ctx, moderatorID)
			return 0, types.ErrReviewTimeout

		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context canceled during score wait")
			return 0, ctx.Err()
		}
	}
}

// Prompts the moderator for a denial reason.
func (m *Manager) solicitReason(
	ctx context.Context,
	teamID uuid.UUID,
	taskID uuid.UUID,
	moderatorID string,
) (string, error) {
	ctx, span := tracer.Start(ctx, "Manager.solicitReason")
	defer span.End()

	key := waitKey{TeamID: teamID, TaskID: taskID}
	w, err := m.register(key, moderatorID, types.DecisionDeny)
	if err != nil {
		span.SetStatus(codes.Ok, "review exchange already active")
		return "", err
	}
	defer m.unregister(key)

	prompt := "Enter a reason for denying this submission."
	if err := m.gateway.NotifyUser(ctx, moderatorID, prompt); err != nil {
		span.RecordError(err)
		span.AddEvent("failed to prompt moderator, still waiting")
	}

	deadline := time.NewTimer(m.timeout)
	defer deadline.Stop()

	select {
	case reason := <-w.ch:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "got reason")
		return reason, nil

	case <-deadline.C:
		span.SetStatus(codes.Ok, "reason wait timed out")
		m.notifyTimeout(ctx, moderatorID)
		return "", types.ErrReviewTimeout

	case <-ctx.Done():
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "context canceled during reason wait")
		return "", ctx.Err()
	}
}

func (m *Manager) notifyTimeout(ctx context.Context, moderatorID string) {
	text := "Review timed out. The submission is still pending; click the controls again to retry."
	if err := m.gateway.NotifyUser(ctx, moderatorID, text); err != nil {
		_ = err // best effort
	}
}
