package hls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/pkg/httpclient"
)

func TestValidate_TooFewSegments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live/ch1/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720\n720p/variant.m3u8\n"))
	})
	mux.HandleFunc("/live/ch1/720p/variant.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tooFewSegmentsPlaylist))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := config.HLSConfig{
		PackagerBaseURL:      server.URL,
		FetchTimeout:         5 * time.Second,
		TargetSegmentSeconds: 6,
		TolerancePercent:     10,
		MinPlaylistSegments:  3,
		MinSegmentSizeBytes:  50_000,
		MaxDownloadSeconds:   5,
	}

	validator := NewValidator(httpclient.NewClientFactory(nil), cfg)
	result := validator.Validate(context.Background(), "ch1")

	require.Empty(t, result.ChannelError)
	require.Len(t, result.Validations, 1)

	validation := result.Validations[0]
	assert.False(t, validation.IsValid)
	require.NotEmpty(t, validation.Errors)
	assert.True(t, strings.HasPrefix(validation.Errors[0], "Too few segments"))
	assert.Empty(t, result.Samples)
}

func TestValidate_MasterFetchFailure(t *testing.T) {
	cfg := config.HLSConfig{
		PackagerBaseURL:      "http://127.0.0.1:1",
		FetchTimeout:         200 * time.Millisecond,
		TargetSegmentSeconds: 6,
		TolerancePercent:     10,
		MinPlaylistSegments:  3,
	}

	validator := NewValidator(httpclient.NewClientFactory(nil), cfg)
	result := validator.Validate(context.Background(), "missing-channel")

	assert.NotEmpty(t, result.ChannelError)
	assert.Empty(t, result.Rungs)
}
