package cmds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roadrallyhq/rally-api/internal/logger"
	"github.com/roadrallyhq/rally-api/internal/sheet"
	"github.com/roadrallyhq/rally-api/internal/types"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/importer")

var (
	tasksAPIURL   string
	tasksSheet    string
	tasksClientID string
	tasksToken    string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Parse a CSV task sheet and import it over the API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "tasksCmd")
		defer span.End()

		span.SetAttributes(
			attribute.String("api.url", tasksAPIURL),
			attribute.String("sheet", tasksSheet),
		)

		if tasksToken == "" {
			err := fmt.Errorf("env RALLYAPI_IMPORT_TOKEN required")
			span.RecordError(err)
			span.SetStatus(codes.Error, "missing api token")
			return err
		}

		raw, err := os.ReadFile(tasksSheet)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read task sheet")
			return fmt.Errorf("failed to read task sheet: %w", err)
		}

		// Parse locally first so a broken sheet fails before it hits the API
		rows, err := sheet.Parse(ctx, bytes.NewReader(raw))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "task sheet failed validation")
			return fmt.Errorf("task sheet failed validation: %w", err)
		}

		logger.Logger.InfoContext(ctx, "task sheet parsed", "tasks", len(rows))
		span.AddEvent("parsed_sheet", trace.WithAttributes(
			attribute.Int("count", len(rows)),
		))

		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = 3
		retryClient.RetryWaitMin = 100 * time.Millisecond
		retryClient.RetryWaitMax = 5 * time.Second
		retryClient.Logger = nil
		client := retryClient.StandardClient()

		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			tasksAPIURL+"/v1/tasks/import/",
			bytes.NewReader(raw),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build import request")
			return err
		}
		req.SetBasicAuth(tasksClientID, tasksToken)
		req.Header.Set("Content-Type", "text/csv")

		resp, err := client.Do(req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "import request failed")
			return fmt.Errorf("import request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("import rejected with status %d", resp.StatusCode)
			span.RecordError(err)
			span.SetStatus(codes.Error, "import rejected")
			return err
		}

		var result types.ImportTasksResponse
		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode import response")
			return err
		}

		logger.Logger.InfoContext(ctx, "tasks imported", "imported", result.Imported)

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "imported tasks")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.PersistentFlags().
		StringVarP(&tasksAPIURL, "api-url", "a", "http://localhost:1323", "Base URL of the rally API")
	tasksCmd.PersistentFlags().StringVarP(&tasksSheet, "sheet", "s", "", "Path to the CSV task sheet")
	tasksCmd.PersistentFlags().StringVarP(&tasksClientID, "client-id", "c", "", "API client ID")

	for _, flag := range []string{"sheet", "client-id"} {
		err := tasksCmd.MarkPersistentFlagRequired(flag)
		if err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	tasksToken = os.Getenv("RALLYAPI_IMPORT_TOKEN")
}
