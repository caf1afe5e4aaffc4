package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	srverr "github.com/roadrallyhq/rally-api/cmd/server/internal/error"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/response"
	"github.com/roadrallyhq/rally-api/internal/types"
)

// Resolves a pending submission. For judged tasks the accept path blocks
// until the moderator delivers a score over the review-message endpoint,
// so the relay must call this with a generous client timeout.
func (h *Handler) Decision(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Decision")
	defer span.End()

	span.AddEvent("received decision request")

	task, ok := c.Get("task").(*models.Task)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("task: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	team, ok := c.Get("team").(*models.Team)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	kind := types.Decision(c.Param("kind"))
	if kind != types.DecisionAccept && kind != types.DecisionDeny {
		span.SetStatus(codes.Ok, "unknown decision kind")
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("decision kind must be accept or deny"),
		)
	}

	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("team.id", team.ID.String()),
		attribute.String("decision.kind", string(kind)),
	)

	var rdata types.DecisionRequest

	span.AddEvent("parsing request body")
	err := c.Bind(&rdata)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("failed to parse request data"),
		)
	}

	span.AddEvent("validating request body")
	err = c.Validate(rdata)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	span.AddEvent("running decision")
	resp, err := h.reviewer.HandleDecision(ctx, team.ID, task.ID, kind, rdata.ModeratorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "decision did not resolve")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "decision resolved")
	return c.JSON(http.StatusOK, resp)
}

// Forwards a moderator's follow-up message (score or denial reason) into
// the review exchange blocked inside Decision.
func (h *Handler) ReviewMessage(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ReviewMessage")
	defer span.End()

	task, ok := c.Get("task").(*models.Task)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("task: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	team, ok := c.Get("team").(*models.Team)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	var rdata types.ReviewMessageRequest

	span.AddEvent("parsing request body")
	err := c.Bind(&rdata)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("failed to parse request data"),
		)
	}

	span.AddEvent("validating request body")
	err = c.Validate(rdata)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("team.id", team.ID.String()),
		attribute.String("decision.kind", string(rdata.Kind)),
	)

	span.AddEvent("delivering review message")
	err = h.reviewer.Deliver(ctx, team.ID, task.ID, rdata.ModeratorID, rdata.Kind, rdata.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "message was not delivered")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "delivered review message")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SubmissionsForTask(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SubmissionsForTask")
	defer span.End()

	task, ok := c.Get("task").(*models.Task)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("task: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("task.id", task.ID.String()))

	rows, err := h.service.SubmissionsForTask(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to list submissions")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed submissions")
	return c.JSON(http.StatusOK, rows)
}
