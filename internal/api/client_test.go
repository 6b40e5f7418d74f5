package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/auth"
	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/observability"
	apierrors "github.com/spec-kit/market-session/pkg/util"
)

func newTestClient(t *testing.T, baseURL string, dispatcher events.Dispatcher) (*Client, *auth.CredentialStore, *observability.Metrics) {
	t.Helper()
	creds := auth.NewCredentialStore(zap.NewNop())
	metrics := observability.NewMetrics()
	client := NewClient(config.APIConfig{BaseURL: baseURL, TimeoutSeconds: 5}, creds, dispatcher, zap.NewNop(), metrics)
	return client, creds, metrics
}

func TestCallRefreshesAndReplaysOnUnauthorized(t *testing.T) {
	var meCalls, refreshCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":        map[string]any{"email": "customer@example.com", "role": "customer"},
			"accessToken": "fresh",
		})
	})
	mux.HandleFunc("/users/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, creds, metrics := newTestClient(t, srv.URL, nil)
	creds.Set("stale")

	profile, token, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "customer@example.com", profile.Email)
	assert.Equal(t, "fresh", token)

	assert.Equal(t, int64(2), meCalls.Load())
	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.Equal(t, "fresh", creds.Get())
	assert.Equal(t, int64(1), metrics.ReplayCount())
}

func TestCallRefreshFailurePublishesSessionExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/users/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dispatcher := events.NewInMemoryDispatcher()
	var expired atomic.Int64
	dispatcher.Subscribe(events.EventSessionExpired, func(ctx context.Context, _ events.Event) error {
		expired.Add(1)
		return nil
	})

	client, creds, _ := newTestClient(t, srv.URL, dispatcher)
	creds.Set("stale")

	_, _, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, apierrors.IsRefreshFailed(err))
	assert.Equal(t, "", creds.Get())
	assert.Equal(t, int64(1), expired.Load())
}

func TestCallReplayUnauthorizedSurfacesAsIs(t *testing.T) {
	// the server accepts the refresh but keeps rejecting the protected call:
	// exactly one refresh-and-replay cycle runs, then the failure surfaces
	var meCalls, refreshCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/users/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _, _ := newTestClient(t, srv.URL, nil)

	_, _, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, apierrors.IsUnauthorized(err))
	assert.Equal(t, int64(2), meCalls.Load())
	assert.Equal(t, int64(1), refreshCalls.Load())
}

func TestLoginUnauthorizedIsNotRetried(t *testing.T) {
	var refreshCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/users/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _, _ := newTestClient(t, srv.URL, nil)

	_, err := client.Login(context.Background(), "customer@example.com", "bad-hash", false)
	require.Error(t, err)
	assert.True(t, apierrors.IsUnauthorized(err))
	assert.Equal(t, int64(0), refreshCalls.Load())
}

func TestDispatchClassifiesServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "backend down"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _, _ := newTestClient(t, srv.URL, nil)

	err := client.Logout(context.Background())
	require.Error(t, err)
	assert.True(t, apierrors.IsServer(err))
	assert.Contains(t, err.Error(), "backend down")
}

func TestDispatchClassifiesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listens anymore

	client, _, _ := newTestClient(t, srv.URL, nil)

	err := client.Logout(context.Background())
	require.Error(t, err)
	assert.True(t, apierrors.IsNetwork(err))
}
