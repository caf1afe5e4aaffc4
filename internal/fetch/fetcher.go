package fetch

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/internal/fetch")

// Generic file retrieval interface
type Fetcher interface {
	// Caller owns the returned ReadCloser
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}
