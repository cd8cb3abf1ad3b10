package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/httpclient"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/resilience"
)

// testGateway builds a gateway against the test server with millisecond
// retry backoff so transient-failure paths run fast.
func testGateway(t *testing.T, server *httptest.Server, opts ...Option) *Gateway {
	t.Helper()

	retryConfig := resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableChecker: func(err error) bool {
			var httpErr *httpclient.HTTPError
			if errors.As(err, &httpErr) {
				return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
			}
			return true
		},
	}

	g := &Gateway{
		wsURL:  server.URL,
		client: httpclient.NewClient(server.URL, 2*time.Second, httpclient.WithRetry(retryConfig)),
		reads: resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "test_reads",
			Timeout:          time.Second,
			FailureThreshold: 100,
		}, nil),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestCreateRideSendsIdempotencyKey(t *testing.T) {
	userID := uuid.New()
	var gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/rides", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")

		var req models.RideCreate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(t, w, models.Ride{
			ID:          uuid.New(),
			UserID:      req.UserID,
			Pickup:      req.Pickup,
			Destination: req.Destination,
			VehicleType: req.VehicleType,
			Status:      models.RideStatusPending,
			DistanceKm:  req.DistanceKm,
			Fare:        req.Fare,
		})
	}))
	defer server.Close()

	g := testGateway(t, server)
	ride, err := g.CreateRide(context.Background(), &models.RideCreate{
		UserID:      userID,
		VehicleType: models.VehicleTypeCar,
		Status:      models.RideStatusPending,
		DistanceKm:  15.3,
		Fare:        260,
	}, "attempt-7f3b")

	require.NoError(t, err)
	assert.Equal(t, userID, ride.UserID)
	assert.Equal(t, models.RideStatusPending, ride.Status)
	assert.Equal(t, "attempt-7f3b", gotKey, "the caller's key reaches the backend unchanged")

	_, err = g.CreateRide(context.Background(), &models.RideCreate{UserID: userID}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, gotKey, "a missing key is filled in before the request goes out")
	assert.NotEqual(t, "attempt-7f3b", gotKey)
}

func TestCreateRideNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := testGateway(t, server)
	ride, err := g.CreateRide(context.Background(), &models.RideCreate{UserID: uuid.New()}, "")

	require.Error(t, err)
	assert.Nil(t, ride)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	kind, ok := common.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, common.KindNetworkFailure, kind)
}

func TestGetRideRetriesTransientFailures(t *testing.T) {
	rideID := uuid.New()
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, models.Ride{ID: rideID, Status: models.RideStatusAccepted})
	}))
	defer server.Close()

	g := testGateway(t, server)
	ride, err := g.GetRide(context.Background(), rideID)

	require.NoError(t, err)
	assert.Equal(t, rideID, ride.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind common.ErrorKind
	}{
		{"bad request is validation", http.StatusBadRequest, common.KindValidation},
		{"unauthorized is session invalid", http.StatusUnauthorized, common.KindUnauthorized},
		{"not found", http.StatusNotFound, common.KindNotFound},
		{"conflict", http.StatusConflict, common.KindConflict},
		{"server error is network failure", http.StatusInternalServerError, common.KindNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			g := testGateway(t, server)
			_, err := g.UpdateRideStatus(context.Background(), uuid.New(), models.RideStatusCancelled)

			require.Error(t, err)
			kind, ok := common.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestCurrentRideMissingIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := testGateway(t, server)
	ride, err := g.CurrentRide(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Nil(t, ride)
}

func TestCurrentSubscriptionMissingIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := testGateway(t, server)
	sub, err := g.CurrentSubscription(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestNearbyDriversQueryEncoding(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/drivers/nearby", r.URL.Path)
		gotQuery = map[string]string{
			"latitude":     r.URL.Query().Get("latitude"),
			"longitude":    r.URL.Query().Get("longitude"),
			"radius":       r.URL.Query().Get("radius"),
			"vehicle_type": r.URL.Query().Get("vehicle_type"),
		}
		writeJSON(t, w, []models.Driver{
			{ID: uuid.New(), Name: "Asha", VehicleType: models.VehicleTypeBike},
		})
	}))
	defer server.Close()

	g := testGateway(t, server)
	drivers, err := g.NearbyDrivers(context.Background(), models.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, 5000, models.VehicleTypeBike)

	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "12.9716", gotQuery["latitude"])
	assert.Equal(t, "77.5946", gotQuery["longitude"])
	assert.Equal(t, "5000", gotQuery["radius"])
	assert.Equal(t, "bike", gotQuery["vehicle_type"])
}

func TestTokenSourceAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, models.User{ID: uuid.New(), FullName: "Priya"})
	}))
	defer server.Close()

	g := testGateway(t, server, WithTokenSource(func() string { return "token-123" }))
	_, err := g.GetProfile(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, "Bearer token-123", gotAuth)
}

func TestVerifyOTPDecodesSession(t *testing.T) {
	userID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/verify", r.URL.Path)

		var req otpVerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "9876543210", req.Phone)
		assert.Equal(t, "1234", req.Code)

		writeJSON(t, w, models.Session{
			AccessToken:  "access",
			RefreshToken: "refresh",
			UserID:       userID,
			PhoneNumber:  req.Phone,
		})
	}))
	defer server.Close()

	g := testGateway(t, server)
	session, err := g.VerifyOTP(context.Background(), "9876543210", "1234")

	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, "access", session.AccessToken)
}

func TestSignOutUsesExplicitToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/signout", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	g := testGateway(t, server)
	require.NoError(t, g.SignOut(context.Background(), "stale-token"))
	assert.Equal(t, "Bearer stale-token", gotAuth)
}

func TestUpdateUsagePatchesSubscription(t *testing.T) {
	subID := uuid.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/v1/subscriptions/"+subID.String()+"/usage", r.URL.Path)

		var req usageUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(t, w, models.Subscription{ID: subID, DistanceUsed: req.DistanceUsed})
	}))
	defer server.Close()

	g := testGateway(t, server)
	sub, err := g.UpdateUsage(context.Background(), subID, 12.5)

	require.NoError(t, err)
	assert.Equal(t, 12.5, sub.DistanceUsed)
}

func TestNewHonorsResilienceConfig(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	retry := resilience.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	g := New(Config{
		BaseURL: server.URL,
		Timeout: time.Second,
		Retry:   &retry,
		Breaker: &resilience.Settings{
			Name:             "configured_reads",
			Timeout:          time.Minute,
			FailureThreshold: 1,
		},
	})

	_, err := g.GetRide(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls)) // configured attempt budget, not the default 3

	// threshold 1 opened the breaker; the next read never reaches the wire
	_, err = g.GetRide(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewPrefersDedicatedWebSocketURL(t *testing.T) {
	g := New(Config{
		BaseURL:      "https://api.ecoride.in",
		WebSocketURL: "wss://push.ecoride.in",
	})

	got, err := g.feedURL(uuid.New())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "wss://push.ecoride.in/v1/rides/"), got)
}

func TestBreakerOpenMapsToNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close() // every request now fails at the transport level

	g := testGateway(t, server, WithReadBreaker(resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "test_reads_tripping",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, nil)))

	_, err := g.GetRide(context.Background(), uuid.New())
	require.Error(t, err)

	// breaker is open now; the next read is rejected without a request
	_, err = g.GetRide(context.Background(), uuid.New())
	require.Error(t, err)
	kind, ok := common.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, common.KindNetworkFailure, kind)
}
