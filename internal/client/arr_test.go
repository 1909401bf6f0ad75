package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/deletarr-go/internal/config"
)

func TestArrClient_SystemStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v3/system/status", r.URL.Path)
		if r.Header.Get("X-Api-Key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"appName":"Radarr","version":"5.2.6.8376"}`))
	}))
	defer srv.Close()

	status, err := NewArrClient("Radarr", srv.URL+"/", "good").SystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Radarr", status.AppName)
	assert.Equal(t, "5.2.6.8376", status.Version)

	calls.Store(0)
	_, err = NewArrClient("Radarr", srv.URL, "bad").SystemStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected the api key")
	assert.Equal(t, int32(1), calls.Load(), "unauthorized must not be retried")
}

func TestArrClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"appName":"Sonarr","version":"4.0.0"}`))
	}))
	defer srv.Close()

	status, err := NewArrClient("Sonarr", srv.URL, "key").SystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.0.0", status.Version)
	assert.Equal(t, int32(2), calls.Load())
}

type pingClient struct {
	DownloadClient
	err error
}

func (p pingClient) Name() string                   { return "fake" }
func (p pingClient) Ping(ctx context.Context) error { return p.err }

func TestCheckServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appName":"Radarr","version":"5.0.0"}`))
	}))
	defer srv.Close()

	off := false
	cfg := &config.Config{
		Services: []config.Service{
			{Name: "Radarr", URL: srv.URL, APIKey: "key", Category: "radarr"},
			{Name: "Sonarr", URL: srv.URL, Category: "tv", Enabled: &off},
			{Name: "Lidarr", Category: "music"},
		},
	}

	got := CheckServices(context.Background(), cfg, pingClient{}, nil)
	assert.Equal(t, Health{Name: "fake", Status: StatusOK}, got.DownloadClient)
	assert.Equal(t, Health{Status: StatusOK, Version: "5.0.0"}, got.Services["Radarr"])
	assert.Equal(t, StatusDisabled, got.Services["Sonarr"].Status)
	assert.Equal(t, StatusDisabled, got.Services["Lidarr"].Status)
	assert.Zero(t, got.Failed())

	got = CheckServices(context.Background(), cfg, pingClient{err: errors.New("boom")}, nil)
	assert.Equal(t, StatusError, got.DownloadClient.Status)
	assert.Equal(t, 1, got.Failed())

	got = CheckServices(context.Background(), cfg, nil, ErrLogin)
	assert.Equal(t, Health{Name: "downloadClient", Status: StatusError, Message: ErrLogin.Error()}, got.DownloadClient)
}

func TestCheckServices_ServiceNamedLikeClient(t *testing.T) {
	cfg := &config.Config{
		Services: []config.Service{
			{Name: "fake", Category: "radarr"},
		},
	}

	got := CheckServices(context.Background(), cfg, pingClient{err: errors.New("boom")}, nil)
	assert.Equal(t, StatusError, got.DownloadClient.Status)
	assert.Equal(t, "boom", got.DownloadClient.Message)
	assert.Equal(t, StatusDisabled, got.Services["fake"].Status)
}
