package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/response"
	"github.com/roadrallyhq/rally-api/internal/sheet"
	"github.com/roadrallyhq/rally-api/internal/types"
)

func taskEntry(task models.Task) types.TaskEntry {
	return types.TaskEntry{
		TaskID:      task.ID.String(),
		Location:    task.Location,
		Description: task.Description,
		MaxPoints:   task.MaxPoints,
		Judged:      task.Judged,
	}
}

func (h *Handler) CreateTask(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "CreateTask")
	defer span.End()

	var rdata types.CreateTaskRequest

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

	span.SetAttributes(attribute.Int("task.location", rdata.Location))

	span.AddEvent("creating task")
	task, err := h.service.CreateTask(ctx, rdata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "task was not created")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created task")
	return c.JSON(http.StatusCreated, taskEntry(*task))
}

// Imports a whole task sheet in one transaction. The body is the raw CSV,
// not JSON; a single bad row fails the import.
func (h *Handler) ImportTasks(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ImportTasks")
	defer span.End()

	span.AddEvent("parsing task sheet")
	reqs, err := sheet.Parse(ctx, c.Request().Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to parse task sheet")
		return echo.NewHTTPError(http.StatusBadRequest, types.StringError(err.Error()))
	}

	span.SetAttributes(attribute.Int("tasks.count", len(reqs)))

	span.AddEvent("importing tasks")
	imported, err := h.service.ImportTasks(ctx, reqs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "tasks were not imported")
		return domainError(err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "imported tasks")
	return c.JSON(http.StatusOK, types.ImportTasksResponse{Imported: imported})
}

func (h *Handler) ListTasks(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListTasks")
	defer span.End()

	tasks, err := models.AllTasks(ctx, h.DB)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to list tasks")
		return response.InternalServerError
	}

	entries := make([]types.TaskEntry, 0, len(tasks))
	for _, task := range tasks {
		entries = append(entries, taskEntry(task))
	}

	span.SetAttributes(attribute.Int("tasks.count", len(entries)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed tasks")
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) TasksForMember(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "TasksForMember")
	defer span.End()

	memberID := c.Param("member_id")
	if memberID == "" {
		span.SetStatus(codes.Ok, "missing member id")
		return echo.NewHTTPError(http.StatusBadRequest, types.StringError("member id is required"))
	}

	span.SetAttributes(attribute.String("member.id", memberID))

	rows, err := h.service.TasksForMember(ctx, memberID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Ok, "failed to list member tasks")
		return domainError(err)
	}

	entries := make([]types.TaskWithStatusEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, types.TaskWithStatusEntry{
			TaskEntry: taskEntry(row.Task),
			Status:    row.Status,
		})
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed member tasks")
	return c.JSON(http.StatusOK, entries)
}
