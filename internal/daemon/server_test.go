package daemon

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramcherukuri/kineto/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := newTestStore(t)
	srv := NewServer(DefaultServerConfig(), store, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_QueueAndPollRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	client := NewHTTPClient(ts.URL)

	// Nothing pending: empty text, no error.
	body, err := client.ReadOnDemandConfig(ctx, true, true)
	require.NoError(t, err)
	assert.Empty(t, body)

	// Queue a config targeted at activity profiling.
	resp, err := ts.Client().Post(
		ts.URL+"/v1/on-demand/config?activities=true",
		"text/plain",
		bytes.NewBufferString("activities_duration_secs = 15"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 202, resp.StatusCode)

	// An events-only poll does not consume it.
	body, err = client.ReadOnDemandConfig(ctx, true, false)
	require.NoError(t, err)
	assert.Empty(t, body)

	// A matching poll gets the text, once.
	body, err = client.ReadOnDemandConfig(ctx, false, true)
	require.NoError(t, err)
	assert.Equal(t, "activities_duration_secs = 15", body)

	body, err = client.ReadOnDemandConfig(ctx, true, true)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestServer_GPUContextCount(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	client := NewHTTPClient(ts.URL)

	// Unknown device: zero.
	count, err := client.GPUContextCount(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	req, err := http.NewRequest(http.MethodPut,
		ts.URL+"/v1/gpus/0/contexts", bytes.NewBufferString(`{"count": 4}`))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	count, err = client.GPUContextCount(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestHTTPClient_ErrorOnBadStatus(t *testing.T) {
	ts := newTestServer(t)
	client := NewHTTPClient(ts.URL + "/missing")

	_, err := client.ReadOnDemandConfig(context.Background(), true, true)
	assert.Error(t, err)
}
