package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roadrallyhq/rally-api/internal/validator"
)

// Ensure HTTPFetcher implements Fetcher interface.
var _ Fetcher = (*HTTPFetcher)(nil)

// Downloads evidence from the chat platform CDN. Bodies are capped at the
// archival size limit so a bad locator cannot balloon memory.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{
		client: client,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "HTTPFetcher.Fetch", trace.WithAttributes(
		attribute.String("url", url),
	))
	defer span.End()

	if !validator.ValidateEvidenceURL(url) {
		err := fmt.Errorf("refusing to fetch non-http evidence locator")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid evidence locator")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct request")
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download file")
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err = fmt.Errorf("invalid status code: %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid status code")
		return nil, err
	}

	if resp.ContentLength > 0 && !validator.ValidateEvidenceSize(resp.ContentLength) {
		resp.Body.Close()
		err = fmt.Errorf("evidence body too large: %d bytes", resp.ContentLength)
		span.RecordError(err)
		span.SetStatus(codes.Error, "evidence body too large")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "fetched file by http")
	return newCappedReadCloser(resp.Body, validator.MaxEvidenceBytes), nil
}

type cappedReadCloser struct {
	inner io.ReadCloser
	left  int64
}

func newCappedReadCloser(inner io.ReadCloser, limit int64) io.ReadCloser {
	return &cappedReadCloser{inner: inner, left: limit}
}

func (c *cappedReadCloser) Read(p []byte) (int, error) {
	if c.left <= 0 {
		return 0, fmt.Errorf("evidence body exceeded %d byte cap", validator.MaxEvidenceBytes)
	}

	if int64(len(p)) > c.left {
		p = p[:c.left]
	}

	n, err := c.inner.Read(p)
	c.left -= int64(n)
	return n, err
}

func (c *cappedReadCloser) Close() error {
	return c.inner.Close()
}
