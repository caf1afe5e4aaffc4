package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roadrallyhq/rally-api/internal/types"
)

func (h *Handler) StartLocation(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "StartLocation")
	defer span.End()

	var rdata types.StartLocationRequest

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

	span.SetAttributes(attribute.Int("game.location", rdata.Location))

	span.AddEvent("activating location")
	taskCount, err := h.service.StartLocation(ctx, rdata.Location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "location was not activated")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "activated location")
	return c.JSON(http.StatusOK, map[string]int{"tasks": taskCount})
}

func (h *Handler) ToggleLeaderboard(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ToggleLeaderboard")
	defer span.End()

	visible, err := h.service.ToggleLeaderboard(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "leaderboard visibility was not toggled")
		return domainError(err)
	}

	span.SetAttributes(attribute.Bool("leaderboard.visible", visible))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "toggled leaderboard visibility")
	return c.JSON(http.StatusOK, map[string]bool{"visible": visible})
}

func (h *Handler) GameState(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "GameState")
	defer span.End()

	state, err := h.service.GameState(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to fetch game state")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched game state")
	return c.JSON(http.StatusOK, state)
}
