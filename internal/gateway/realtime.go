package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/httpclient"
	"github.com/ecoride/ecoride/pkg/logger"
	"github.com/ecoride/ecoride/pkg/models"
)

// readTimeout bounds how long the feed waits for a frame before
// treating the connection as dead. The lifecycle tracker's fallback
// ticker covers the gap, so a dropped feed is not reconnected.
const readTimeout = 30 * time.Second

// StatusEvent is one ride status change pushed by the backend.
type StatusEvent struct {
	RideID uuid.UUID         `json:"ride_id"`
	Status models.RideStatus `json:"status"`
}

// StatusFeed is a live subscription to one ride's status events.
type StatusFeed struct {
	conn      *websocket.Conn
	rideID    uuid.UUID
	closeOnce sync.Once
}

// SubscribeRideStatus opens a websocket feed for the ride's status
// events. The caller owns the feed and must Close it.
func (g *Gateway) SubscribeRideStatus(ctx context.Context, rideID uuid.UUID) (*StatusFeed, error) {
	endpoint, err := g.feedURL(rideID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if g.apiKey != "" {
		header.Set("X-API-Key", g.apiKey)
	}
	for key, value := range g.headers() {
		header.Set(key, value)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, mapError(&httpclient.HTTPError{StatusCode: resp.StatusCode}, "subscribe ride status")
		}
		return nil, common.NewNetworkError("subscribe ride status failed", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	return &StatusFeed{conn: conn, rideID: rideID}, nil
}

func (g *Gateway) feedURL(rideID uuid.UUID) (string, error) {
	base, err := url.Parse(g.wsURL)
	if err != nil {
		return "", fmt.Errorf("parsing backend URL: %w", err)
	}
	switch base.Scheme {
	case "wss", "https":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}
	base.Path = fmt.Sprintf("/v1/rides/%s/events", rideID)
	return base.String(), nil
}

// Listen reads status events and hands each one to apply until the
// connection drops, the context is cancelled, or the feed is closed.
// A clean server close returns nil; an abnormal drop returns the error
// so callers can log it. Events for other rides are discarded.
func (f *StatusFeed) Listen(ctx context.Context, apply func(models.RideStatus)) error {
	if ctx != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				f.Close()
			case <-done:
			}
		}()
	}

	for {
		if err := f.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return common.NewNetworkError("ride status feed lost", err)
		}
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return common.NewNetworkError("ride status feed lost", err)
		}

		var event StatusEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			logger.Get().Warn("discarding malformed status event", zap.Error(err))
			continue
		}
		if event.RideID != f.rideID {
			continue
		}
		apply(event.Status)
	}
}

// Close tears down the feed. Safe to call more than once.
func (f *StatusFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = f.conn.Close()
	})
	return err
}
