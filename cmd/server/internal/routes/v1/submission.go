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

// Marks a task as attempted on behalf of the submitting member's team.
func (h *Handler) Submit(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Submit")
	defer span.End()

	span.AddEvent("received task submission request")

	task, ok := c.Get("task").(*models.Task)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("task: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("task.id", task.ID.String()))

	var rdata types.SubmitRequest

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

	span.SetAttributes(attribute.String("member.id", rdata.MemberID))

	span.AddEvent("recording submission")
	resp, err := h.service.Submit(ctx, rdata.MemberID, task.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "submission was not recorded")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "recorded submission")
	return c.JSON(http.StatusOK, resp)
}

// Attaches an evidence link to the member team's pending submission and
// opens the review artifact.
func (h *Handler) AttachEvidence(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "AttachEvidence")
	defer span.End()

	span.AddEvent("received evidence request")

	task, ok := c.Get("task").(*models.Task)
	if !ok {
		span.RecordError(srverr.ErrTypeAssertMismatch)
		span.SetStatus(codes.Error, fmt.Sprintf("task: %s", srverr.ErrTypeAssertMismatch))
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("task.id", task.ID.String()))

	var rdata types.EvidenceRequest

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
		attribute.String("member.id", rdata.MemberID),
		attribute.String("media.kind", rdata.MediaKind),
	)

	span.AddEvent("attaching evidence")
	resp, err := h.service.AttachEvidence(ctx, rdata.MemberID, task.ID, rdata.EvidenceURL, rdata.MediaKind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "evidence was not attached")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "attached evidence")
	return c.JSON(http.StatusOK, resp)
}
