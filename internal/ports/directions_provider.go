package ports

import (
	"context"
	"pool-dispatch-service/internal/domain"
)

// DirectionsRoute is a provider response for an optimize request.
// WaypointOrder is the provider's permutation of the intermediate points
// (indices relative to points[1:len-1]).
type DirectionsRoute struct {
	WaypointOrder []int
	Legs          []domain.Leg
	Path          []domain.Coordinates
}

// DrivingTimesResult carries the legs of a sequence in visiting order.
// Legs[i] covers points[i] -> points[i+1]; nil entries belong to windows
// the provider could not serve, in which case Degraded is set.
type DrivingTimesResult struct {
	Legs     []*domain.Leg
	Requests int
	Degraded bool
}

// Contract for a third-party directions service.
//
// Implementations return an error wrapping domain.ErrUnavailable for any
// transport, provider or credential failure.
type DirectionsProvider interface {
	// Let the provider reorder intermediate points between a fixed origin
	// (points[0]) and destination (points[len-1]).
	Optimize(ctx context.Context, points []domain.Coordinates) (DirectionsRoute, error)
	// Return leg durations for the points in the given order, batching as
	// required by the provider's waypoint limit.
	DrivingTimes(ctx context.Context, points []domain.Coordinates) (DrivingTimesResult, error)
	// Largest number of points (origin, destination and intermediates)
	// accepted by a single request.
	MaxWaypoints() int
}
