package fetch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadrallyhq/rally-api/internal/fetch"
)

func TestHTTPFetcher(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		srv := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("evidence bytes"))
			}),
		)
		defer srv.Close()

		f := fetch.NewHTTPFetcher(srv.Client())

		body, err := f.Fetch(context.Background(), srv.URL+"/att/1/photo.jpg")
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "evidence bytes", string(data))
	})

	t.Run("InvalidStatusCode", func(t *testing.T) {
		srv := httptest.NewServer(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}),
		)
		defer srv.Close()

		f := fetch.NewHTTPFetcher(srv.Client())

		_, err := f.Fetch(context.Background(), srv.URL+"/gone")
		assert.Error(t, err)
	})

	t.Run("InvalidLocator", func(t *testing.T) {
		f := fetch.NewHTTPFetcher(http.DefaultClient)

		_, err := f.Fetch(context.Background(), "file:///etc/passwd")
		assert.Error(t, err)
	})
}
