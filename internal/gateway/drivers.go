package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ecoride/ecoride/pkg/models"
)

// NearbyDrivers returns available drivers within radiusM meters of the
// center, filtered to the requested vehicle type.
func (g *Gateway) NearbyDrivers(ctx context.Context, center models.Coordinate, radiusM float64, vt models.VehicleType) ([]models.Driver, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(center.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(center.Longitude, 'f', -1, 64))
	query.Set("radius", strconv.FormatFloat(radiusM, 'f', -1, 64))
	query.Set("vehicle_type", string(vt))

	var drivers []models.Driver
	path := fmt.Sprintf("/v1/drivers/nearby?%s", query.Encode())
	if err := g.getJSON(ctx, path, "nearby drivers", &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}
