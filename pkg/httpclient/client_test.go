package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/resilience"
)

func TestGetReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rides/nearby", r.URL.Path)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	body, err := client.Get(context.Background(), "/rides/nearby", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestPostSendsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "car", payload["vehicle_type"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	_, err := client.Post(context.Background(), "/rides", map[string]string{"vehicle_type": "car"}, nil)

	require.NoError(t, err)
}

func TestErrorStatusBecomesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	_, err := client.Get(context.Background(), "/rides/missing", nil)

	require.Error(t, err)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	retryConfig := resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableChecker:  isHTTPRetryable,
	}

	client := NewClient(server.URL, 2*time.Second, WithRetry(retryConfig))
	body, err := client.Get(context.Background(), "/drivers", nil)

	require.NoError(t, err)
	assert.Equal(t, `[]`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryGivesUpOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, WithDefaultRetry())
	_, err := client.Get(context.Background(), "/drivers", nil)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostIsNeverRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, WithDefaultRetry())
	_, err := client.Post(context.Background(), "/rides", map[string]string{}, nil)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostWithIdempotencyGeneratesKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	_, err := client.PostWithIdempotency(context.Background(), "/rides", nil, nil, "")

	require.NoError(t, err)
	assert.NotEmpty(t, gotKey)
}

func TestAPIKeyAndCorrelationIDHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "corr-123", r.Header.Get(CorrelationIDHeader))
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, WithAPIKey("secret"))
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-123")

	_, err := client.Get(ctx, "/me", nil)
	require.NoError(t, err)
}

func TestPatchUsesPatchMethod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second)
	_, err := client.Patch(context.Background(), "/rides/1", map[string]string{"status": "cancelled"}, nil)
	require.NoError(t, err)
}
