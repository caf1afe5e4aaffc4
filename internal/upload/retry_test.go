package upload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrallyhq/rally-api/internal/upload"
)

type flakyUploader struct {
	failuresLeft int
	uploads      int
	stored       map[string][]byte
}

func newFlakyUploader(failures int) *flakyUploader {
	return &flakyUploader{failuresLeft: failures, stored: map[string][]byte{}}
}

func (f *flakyUploader) Upload(_ context.Context, reader io.ReadSeeker, _ int64, url string) error {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("transient store failure")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	f.uploads++
	f.stored[url] = data
	return nil
}

func (f *flakyUploader) Exists(_ context.Context, url string) (bool, error) {
	_, ok := f.stored[url]
	return ok, nil
}

func (f *flakyUploader) StoreIdentifier(_ context.Context) (string, error) {
	return "fake-bucket", nil
}

func (f *flakyUploader) PresignedReadURL(_ context.Context, url string, _ time.Duration) (string, error) {
	return "https://fake-bucket.example.com/" + url, nil
}

func immediateBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewConstant(time.Millisecond))
}

func TestRetryUploader(t *testing.T) {
	t.Run("RecoversFromTransientFailures", func(t *testing.T) {
		inner := newFlakyUploader(2)
		r := upload.NewRetryUploaderBackoff(inner, immediateBackoff)

		payload := []byte("evidence")
		err := r.Upload(context.Background(), bytes.NewReader(payload), int64(len(payload)), "obj")
		require.NoError(t, err)
		assert.Equal(t, payload, inner.stored["obj"], "payload should survive the retries intact")
	})

	t.Run("GivesUpAfterBudget", func(t *testing.T) {
		inner := newFlakyUploader(100)
		r := upload.NewRetryUploaderBackoff(inner, immediateBackoff)

		err := r.Upload(context.Background(), bytes.NewReader([]byte("x")), 1, "obj")
		assert.Error(t, err)
	})
}

func TestHashed(t *testing.T) {
	t.Run("DedupesByContent", func(t *testing.T) {
		inner := newFlakyUploader(0)

		payload := []byte("same bytes")
		first, err := upload.Hashed(context.Background(), inner, bytes.NewReader(payload), int64(len(payload)))
		require.NoError(t, err)

		second, err := upload.Hashed(context.Background(), inner, bytes.NewReader(payload), int64(len(payload)))
		require.NoError(t, err)

		assert.Equal(t, first, second, "same content should land on the same object name")
		assert.Equal(t, 1, inner.uploads, "second call should be deduped by Exists")
	})
}
