package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSource(t *testing.T) {
	assert.Equal(t, SourceURL, DetectSource("https://example.com/article"))
	assert.Equal(t, SourceYouTube, DetectSource("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.Equal(t, SourceYouTube, DetectSource("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, SourceURL, DetectSource("https://example.com/paper.pdf"))
	assert.Equal(t, SourceText, DetectSource("just some raw text"))
}

func TestVideoIDFromURL(t *testing.T) {
	id, err := videoIDFromURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)

	id, err = videoIDFromURL("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)

	_, err = videoIDFromURL("https://www.youtube.com/watch?v=short")
	assert.Error(t, err)
}

func TestValidateURLAcceptsReachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := ValidateURL(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestValidateURLFallsBackFromHeadToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := ValidateURL(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestValidateURLRejectsBadScheme(t *testing.T) {
	err := ValidateURL(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)
}
