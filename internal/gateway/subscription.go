package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/models"
	"github.com/ecoride/ecoride/pkg/tracing"
)

type usageUpdate struct {
	DistanceUsed float64 `json:"distance_used"`
}

// CurrentSubscription returns the rider's subscription, or nil when the
// rider has never purchased one.
func (g *Gateway) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	path := fmt.Sprintf("/v1/users/%s/subscription", userID)
	if err := g.getJSON(ctx, path, "current subscription", &sub); err != nil {
		if kind, ok := common.KindOf(err); ok && kind == common.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription purchases a distance bundle. Single shot.
func (g *Gateway) CreateSubscription(ctx context.Context, req *models.SubscriptionCreate) (*models.Subscription, error) {
	if req == nil {
		return nil, common.NewValidationError("subscription request is required")
	}

	var payload []byte
	err := tracing.TraceBackendCall(ctx, "gateway", "backend", "create subscription", func(ctx context.Context) error {
		respBody, err := g.client.PostWithIdempotency(ctx, "/v1/subscriptions", req, g.headers(), "")
		if err != nil {
			return err
		}
		payload = respBody
		return nil
	})
	if err != nil {
		return nil, mapError(err, "create subscription")
	}

	var sub models.Subscription
	if err := decode(payload, "create subscription", &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateUsage writes the consumed distance back to the bundle.
func (g *Gateway) UpdateUsage(ctx context.Context, subscriptionID uuid.UUID, distanceUsed float64) (*models.Subscription, error) {
	var sub models.Subscription
	path := fmt.Sprintf("/v1/subscriptions/%s/usage", subscriptionID)
	if err := g.patchJSON(ctx, path, "update subscription usage", usageUpdate{DistanceUsed: distanceUsed}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
