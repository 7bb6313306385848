package http_utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://bucket.example.com/x.json?X-Amz-Signature=abc"))
	assert.True(t, IsURL("http://localhost:9000/x.json"))
	assert.False(t, IsURL("exports/x.json"))
	assert.False(t, IsURL("ftp://host/x.json"))
}

func TestDownloadByPresignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`[{"id":"a"}]`))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	data, err := DownloadByPresignedURL(context.Background(), srv.URL+"/ok", 1024)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(data))

	_, err = DownloadByPresignedURL(context.Background(), srv.URL+"/big", 16)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = DownloadByPresignedURL(context.Background(), srv.URL+"/expired", 1024)
	assert.ErrorContains(t, err, "403")
}
