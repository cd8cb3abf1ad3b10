package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTP span attributes
const (
	HTTPMethodKey = attribute.Key("http.method")
	HTTPURLKey    = attribute.Key("http.url")
	HTTPStatusKey = attribute.Key("http.status_code")
)

// Ride domain span attributes
const (
	UserIDKey            = attribute.Key("user.id")
	RideIDKey            = attribute.Key("ride.id")
	DriverIDKey          = attribute.Key("driver.id")
	RideStageKey         = attribute.Key("ride.stage")
	VehicleTypeKey       = attribute.Key("ride.vehicle_type")
	FareAmountKey        = attribute.Key("fare.amount")
	DistanceKmKey        = attribute.Key("distance.km")
	LocationLatitudeKey  = attribute.Key("location.latitude")
	LocationLongitudeKey = attribute.Key("location.longitude")
)

// TraceBackendCall wraps a call to the ride backend with a client span.
func TraceBackendCall(ctx context.Context, tracerName, service, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("backend.service", service),
		attribute.String("backend.operation", operation),
	)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// RideAttributes builds the standard attribute set for ride spans.
func RideAttributes(rideID, userID, driverID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if rideID != "" {
		attrs = append(attrs, RideIDKey.String(rideID))
	}
	if userID != "" {
		attrs = append(attrs, UserIDKey.String(userID))
	}
	if driverID != "" {
		attrs = append(attrs, DriverIDKey.String(driverID))
	}
	return attrs
}

// LocationAttributes builds attributes for a coordinate pair.
func LocationAttributes(latitude, longitude float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		LocationLatitudeKey.Float64(latitude),
		LocationLongitudeKey.Float64(longitude),
	}
}
