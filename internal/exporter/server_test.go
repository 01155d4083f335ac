package exporter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", NewCollector(sampleQuery, time.Second, nil), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok"}`, string(body))

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "npustat_up 1")
	assert.Contains(t, string(body), "npustat_query_duration_seconds")
}

func TestServer_Stop(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", NewCollector(sampleQuery, time.Second, nil), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, err = http.Get("http://" + srv.Addr() + "/healthz")
	assert.Error(t, err)
}
