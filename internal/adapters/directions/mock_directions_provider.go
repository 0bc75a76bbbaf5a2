package directions

import (
	"context"
	"fmt"
	"math"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/ports"
)

// MockDirectionsProvider answers from straight-line distance at a constant
// speed. It never reorders waypoints and never fails, which makes it useful
// for local runs without a provider key.
type MockDirectionsProvider struct {
	SpeedMPH  float64
	Waypoints int
}

func NewMockDirectionsProvider() *MockDirectionsProvider {
	return &MockDirectionsProvider{SpeedMPH: 30, Waypoints: DefaultMaxWaypoints}
}

func (m *MockDirectionsProvider) MaxWaypoints() int { return m.Waypoints }

func (m *MockDirectionsProvider) Optimize(ctx context.Context, points []domain.Coordinates) (ports.DirectionsRoute, error) {
	if len(points) < 2 || len(points) > m.Waypoints {
		return ports.DirectionsRoute{}, fmt.Errorf("mock optimize: %d points: %w", len(points), domain.ErrInvalidRequest)
	}

	order := make([]int, len(points)-2)
	for i := range order {
		order[i] = i
	}

	legs := make([]domain.Leg, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		legs = append(legs, m.leg(points[i], points[i+1]))
	}

	return ports.DirectionsRoute{WaypointOrder: order, Legs: legs, Path: points}, nil
}

func (m *MockDirectionsProvider) DrivingTimes(ctx context.Context, points []domain.Coordinates) (ports.DrivingTimesResult, error) {
	out := ports.DrivingTimesResult{Legs: make([]*domain.Leg, 0, max(len(points)-1, 0))}
	for i := 0; i+1 < len(points); i++ {
		leg := m.leg(points[i], points[i+1])
		out.Legs = append(out.Legs, &leg)
	}
	out.Requests = len(windows(len(points), m.Waypoints))
	return out, nil
}

func (m *MockDirectionsProvider) leg(from, to domain.Coordinates) domain.Leg {
	miles := domain.HaversineMiles(from, to)
	seconds := int(math.Round(miles / m.SpeedMPH * 3600))
	meters := int(math.Round(miles * 1609.344))

	return domain.Leg{
		DurationSeconds: seconds,
		DurationText:    fmt.Sprintf("%d mins", (seconds+30)/60),
		DistanceMeters:  meters,
		DistanceText:    fmt.Sprintf("%.1f mi", miles),
	}
}
