// Package sheet parses the organizer task sheet. Organizers keep the task
// catalog in a spreadsheet and export it to CSV; this is the only ingest
// format the importer accepts.
package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roadrallyhq/rally-api/internal/types"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/internal/sheet")

const (
	columnLocation    = 0
	columnDescription = 1
	columnMaxPoints   = 2
	columnJudged      = 3

	columnCount = 4
)

// Parse reads a task sheet CSV and returns one create request per data row.
// A header row is detected by a non numeric first column and skipped. Any
// malformed row fails the whole sheet; a partial import would leave the
// catalog in a state nobody asked for.
func Parse(ctx context.Context, reader io.Reader) ([]types.CreateTaskRequest, error) {
	_, span := tracer.Start(ctx, "sheet.Parse")
	defer span.End()

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = columnCount
	csvReader.TrimLeadingSpace = true

	rows, err := csvReader.ReadAll()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read csv")
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	tasks := make([]types.CreateTaskRequest, 0, len(rows))
	for i, row := range rows {
		if i == 0 && looksLikeHeader(row) {
			span.AddEvent("skipping header row")
			continue
		}

		task, err := parseRow(row)
		if err != nil {
			err = fmt.Errorf("row %d: %w", i+1, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed row")
			return nil, err
		}

		tasks = append(tasks, task)
	}

	span.SetAttributes(attribute.Int("tasks.count", len(tasks)))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "parsed task sheet")
	return tasks, nil
}

func looksLikeHeader(row []string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(row[columnLocation]))
	return err != nil
}

func parseRow(row []string) (types.CreateTaskRequest, error) {
	location, err := strconv.Atoi(strings.TrimSpace(row[columnLocation]))
	if err != nil {
		return types.CreateTaskRequest{}, fmt.Errorf("bad location %q: %w", row[columnLocation], err)
	}
	if location <= 0 {
		return types.CreateTaskRequest{}, fmt.Errorf("location must be positive, got %d", location)
	}

	description := strings.TrimSpace(row[columnDescription])
	if description == "" {
		return types.CreateTaskRequest{}, fmt.Errorf("empty description")
	}

	maxPoints, err := strconv.Atoi(strings.TrimSpace(row[columnMaxPoints]))
	if err != nil {
		return types.CreateTaskRequest{}, fmt.Errorf("bad max points %q: %w", row[columnMaxPoints], err)
	}
	if maxPoints <= 0 {
		return types.CreateTaskRequest{}, fmt.Errorf("max points must be positive, got %d", maxPoints)
	}

	judged, err := parseJudged(row[columnJudged])
	if err != nil {
		return types.CreateTaskRequest{}, err
	}

	return types.CreateTaskRequest{
		Location:    location,
		Description: description,
		MaxPoints:   maxPoints,
		Judged:      judged,
	}, nil
}

// Spreadsheet exports are loose about booleans, accept the common spellings.
func parseJudged(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("bad judged flag %q", raw)
	}
}
