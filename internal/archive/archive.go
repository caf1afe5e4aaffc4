package archive

import (
	"bytes"
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roadrallyhq/rally-api/internal/audit"
	"github.com/roadrallyhq/rally-api/internal/fetch"
	"github.com/roadrallyhq/rally-api/internal/upload"
)

var tracer = otel.Tracer("github.com/roadrallyhq/rally-api/internal/archive")

// Copies accepted evidence out of the chat platform CDN into the S3 archive.
// CDN attachment links expire once a game is over; the archive is what the
// organizers keep.
type Archiver struct {
	fetcher  fetch.Fetcher
	uploader upload.Uploader
}

func NewArchiver(fetcher fetch.Fetcher, uploader upload.Uploader) *Archiver {
	return &Archiver{
		fetcher:  fetcher,
		uploader: uploader,
	}
}

// Best-effort by contract: callers log and swallow the returned error, the
// decision that triggered the archive is already committed.
func (a *Archiver) ArchiveEvidence(
	ctx context.Context,
	auditContext audit.Context,
	submissionID string,
	evidenceURL string,
) error {
	ctx, span := tracer.Start(ctx, "Archiver.ArchiveEvidence")
	defer span.End()

	span.SetAttributes(
		attribute.String("submission.id", submissionID),
		attribute.String("evidence.url", evidenceURL),
	)

	span.AddEvent("downloading evidence from the platform CDN")
	body, err := a.fetcher.Fetch(ctx, evidenceURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download evidence")
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read evidence body")
		return err
	}

	span.AddEvent("uploading evidence to the archive")
	objectName, err := upload.Hashed(ctx, a.uploader, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload evidence")
		return err
	}

	identifier, err := a.uploader.StoreIdentifier(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get store identifier")
		return err
	}

	span.AddEvent("generating audit log message")
	audit.LogFileArchived(auditContext, identifier, objectName, submissionID)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived evidence")
	return nil
}
