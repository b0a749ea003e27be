package detection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movecrm-api/internal/config"
	"movecrm-api/pkg/errors"
)

func newTestClient(endpoint string) *Client {
	return NewClient(&config.DetectionConfig{
		Endpoint: endpoint,
		Timeout:  2 * time.Second,
	})
}

func TestDetect_Success(t *testing.T) {
	var gotReq detectRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/detect", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[{"name":"sofa","confidence":0.92,"bbox":[1,2,3,4]},{"name":"box","confidence":0.55}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	results, err := client.Detect(context.Background(), []string{"https://cdn.example.com/a.jpg"}, "furniture")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "sofa", results[0].Name)
	assert.InDelta(t, 0.92, results[0].Confidence, 1e-9)
	assert.Equal(t, []float64{1, 2, 3, 4}, results[0].BBox)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, gotReq.ImageURLs)
	assert.Equal(t, "furniture", gotReq.Prompt)
}

func TestDetect_EmptyMedia(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	results, err := client.Detect(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestDetect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Detect(context.Background(), []string{"https://cdn.example.com/a.jpg"}, "")
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeDetectionUnavailable, appErr.Code)
}

func TestDetect_Unreachable(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Detect(context.Background(), []string{"https://cdn.example.com/a.jpg"}, "")
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeDetectionUnavailable, appErr.Code)
}

func TestDetect_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Detect(context.Background(), []string{"https://cdn.example.com/a.jpg"}, "")
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeDetectionUnavailable, appErr.Code)
}
