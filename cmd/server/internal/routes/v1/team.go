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

func (h *Handler) CreateTeam(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateTeam")
	defer span.End()

	var rdata types.CreateTeamRequest

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
		attribute.String("team.name", rdata.Name),
		attribute.Int("team.members", len(rdata.Members)),
	)

	span.AddEvent("creating team")
	resp, err := h.service.CreateTeam(ctx, rdata.Name, rdata.Members)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "team was not created")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created team")
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) RenameTeam(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "RenameTeam")
	defer span.End()

	team, ok := c.Get("team").(*models.Team)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	var rdata types.RenameTeamRequest

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
		attribute.String("team.id", team.ID.String()),
		attribute.String("team.name", rdata.Name),
	)

	span.AddEvent("renaming team")
	err = models.RenameTeam(ctx, h.DB, team.ID, rdata.Name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "team was not renamed")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "renamed team")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveTeam(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "RemoveTeam")
	defer span.End()

	team, ok := c.Get("team").(*models.Team)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("team.id", team.ID.String()))

	span.AddEvent("removing team")
	err := h.service.RemoveTeam(ctx, team.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "team was not removed")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "removed team")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTeams(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListTeams")
	defer span.End()

	teams, err := h.service.ListTeams(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to list teams")
		return domainError(err)
	}

	span.SetAttributes(attribute.Int("teams.count", len(teams)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed teams")
	return c.JSON(http.StatusOK, teams)
}
