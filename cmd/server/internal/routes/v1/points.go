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

func (h *Handler) Points(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Points")
	defer span.End()

	team, ok := c.Get("team").(*models.Team)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("team.id", team.ID.String()))

	resp, err := h.service.Points(ctx, team.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to fetch points")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched points")
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) AwardPoints(c echo.Context) error {
	return h.adjustPoints(c, "AwardPoints", 1)
}

func (h *Handler) DeductPoints(c echo.Context) error {
	return h.adjustPoints(c, "DeductPoints", -1)
}

func (h *Handler) adjustPoints(c echo.Context, spanName string, sign int) error {
	ctx, span := tracer.Start(c.Request().Context(), spanName)
	defer span.End()

	team, ok := c.Get("team").(*models.Team)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("team: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	var rdata types.AdjustPointsRequest

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
		attribute.Int("points.delta", sign*rdata.Points),
	)

	span.AddEvent("adjusting points")
	resp, err := h.service.AdjustPoints(ctx, team.ID, sign*rdata.Points, rdata.Reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "points were not adjusted")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "adjusted points")
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Leaderboard(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Leaderboard")
	defer span.End()

	rows, err := h.service.Leaderboard(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "leaderboard unavailable")
		return domainError(err)
	}

	span.SetAttributes(attribute.Int("leaderboard.teams", len(rows)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched leaderboard")
	return c.JSON(http.StatusOK, rows)
}
