package services

import (
	"context"
	"fmt"
	"pool-dispatch-service/internal/adapters/repositories"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/ports"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const org = "org-1"

// monday is a Monday.
var monday = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func at(lat, lon float64) *domain.Coordinates { return &domain.Coordinates{Lat: lat, Lon: lon} }

// fixtureData: Alice runs a Monday route of three stops (20, 30 and 40
// minutes), Bob a Tuesday route of one. A second Monday route has nobody.
func fixtureData() repositories.SeedData {
	return repositories.SeedData{
		Technicians: []domain.Technician{
			{ID: "t-alice", OrganizationID: org, Name: "Alice"},
			{ID: "t-bob", OrganizationID: org, Name: "Bob"},
			{ID: "t-other", OrganizationID: "org-2", Name: "Zed"},
		},
		Clients: []domain.Client{
			{ID: "c1", OrganizationID: org, Name: "Smith", Address: "1 Main St", Coordinates: at(0, 0)},
			{ID: "c2", OrganizationID: org, Name: "Jones", Address: "2 Elm St", Coordinates: at(0, 1)},
			{ID: "c3", OrganizationID: org, Name: "Brown", Address: "3 Oak St", Coordinates: at(0, 10)},
			{ID: "c4", OrganizationID: org, Name: "Green", Address: "4 Pine St", Coordinates: at(1, 1)},
			{ID: "c-nogeo", OrganizationID: org, Name: "Lost", Address: "Somewhere"},
			{ID: "c-other", OrganizationID: "org-2", Name: "Other", Coordinates: at(5, 5)},
		},
		Routes: []domain.Route{
			{ID: "r-mon", OrganizationID: org, Name: "Monday A", TechnicianID: strPtr("t-alice"), DayOfWeek: domain.Monday},
			{ID: "r-mon-open", OrganizationID: org, Name: "Monday B", DayOfWeek: domain.Monday},
			{ID: "r-tue", OrganizationID: org, Name: "Tuesday A", TechnicianID: strPtr("t-bob"), DayOfWeek: domain.Tuesday},
			{ID: "r-other", OrganizationID: "org-2", Name: "Other", TechnicianID: strPtr("t-other"), DayOfWeek: domain.Monday},
		},
		Stops: []domain.RouteStop{
			{ID: "s1", RouteID: "r-mon", ClientID: "c1", OrderIndex: 0, EstimatedMinutes: 20, Coordinates: at(0, 0)},
			{ID: "s2", RouteID: "r-mon", ClientID: "c2", OrderIndex: 1, EstimatedMinutes: 30, Coordinates: at(0, 1)},
			{ID: "s3", RouteID: "r-mon", ClientID: "c3", OrderIndex: 2, EstimatedMinutes: 40, Coordinates: at(0, 10)},
			{ID: "s4", RouteID: "r-tue", ClientID: "c4", OrderIndex: 0, EstimatedMinutes: 60, Coordinates: at(1, 1)},
			{ID: "s-other", RouteID: "r-other", ClientID: "c-other", OrderIndex: 0, EstimatedMinutes: 30},
		},
		Jobs: []domain.Job{
			{ID: "j1", OrganizationID: org, ClientID: "c1", Kind: domain.JobMaintenance, ScheduledDate: monday, Status: domain.JobPending, EstimatedMinutes: 25},
			{ID: "j2", OrganizationID: org, ClientID: "c1", Kind: domain.JobMaintenance, ScheduledDate: monday.AddDate(0, 0, 7), Status: domain.JobPending},
			{ID: "j3", OrganizationID: org, ClientID: "c1", Kind: domain.JobWorkOrder, ScheduledDate: monday, Status: domain.JobPending},
			{ID: "j4", OrganizationID: org, ClientID: "c2", Kind: domain.JobMaintenance, ScheduledDate: monday, Status: domain.JobPending,
				Notes: strPtr("gate code 1234"), EstimatedMinutes: 20},
			{ID: "j5", OrganizationID: org, ClientID: "c3", Kind: domain.JobMaintenance, ScheduledDate: monday, Status: domain.JobCancelled},
			{ID: "j-other", OrganizationID: "org-2", ClientID: "c-other", Kind: domain.JobMaintenance, ScheduledDate: monday, Status: domain.JobPending},
		},
	}
}

type fixture struct {
	repo *repositories.MemoryDispatchRepository
	d    *Dispatcher
}

func newFixture(t *testing.T, directions ports.DirectionsProvider, mutate ...func(*repositories.SeedData)) *fixture {
	t.Helper()

	data := fixtureData()
	for _, m := range mutate {
		m(&data)
	}

	repo := repositories.NewMemoryDispatchRepository()
	require.NoError(t, repo.Seed(context.Background(), data))

	d := NewDispatcher(repo, directions, nil)
	var n atomic.Int64
	d.newID = func() string {
		return fmt.Sprintf("new-%d", n.Add(1))
	}

	return &fixture{repo: repo, d: d}
}

func (f *fixture) stopIDs(t *testing.T, routeID string) []string {
	t.Helper()

	stops, err := f.repo.ListStops(context.Background(), org, routeID)
	require.NoError(t, err)

	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

// requireContiguous checks that the route's positions are exactly 0..N-1.
func (f *fixture) requireContiguous(t *testing.T, routeID string) {
	t.Helper()

	stops, err := f.repo.ListStops(context.Background(), org, routeID)
	require.NoError(t, err)
	for i, s := range stops {
		require.Equal(t, i, s.OrderIndex, "route %s stop %s", routeID, s.ID)
	}
}

// fakeDirections answers Optimize from a canned waypoint order and
// DrivingTimes with one leg per adjacent pair, DurationSeconds = i+1.
type fakeDirections struct {
	max           int
	waypointOrder []int
	optimizeErr   error
	drivingErr    error
	degraded      bool

	optimizeCalls int
	drivingCalls  int
	drivingPoints []domain.Coordinates
}

func (f *fakeDirections) MaxWaypoints() int { return f.max }

func (f *fakeDirections) Optimize(ctx context.Context, points []domain.Coordinates) (ports.DirectionsRoute, error) {
	f.optimizeCalls++
	if f.optimizeErr != nil {
		return ports.DirectionsRoute{}, f.optimizeErr
	}

	legs := make([]domain.Leg, len(points)-1)
	for i := range legs {
		legs[i] = domain.Leg{DurationSeconds: 100 * (i + 1), DurationText: fmt.Sprintf("%d mins", i+1)}
	}
	return ports.DirectionsRoute{
		WaypointOrder: f.waypointOrder,
		Legs:          legs,
		Path:          points,
	}, nil
}

func (f *fakeDirections) DrivingTimes(ctx context.Context, points []domain.Coordinates) (ports.DrivingTimesResult, error) {
	f.drivingCalls++
	f.drivingPoints = points
	if f.drivingErr != nil {
		return ports.DrivingTimesResult{}, f.drivingErr
	}

	legs := make([]*domain.Leg, len(points)-1)
	for i := range legs {
		legs[i] = &domain.Leg{DurationSeconds: i + 1}
	}
	if f.degraded && len(legs) > 0 {
		legs[len(legs)-1] = nil
	}
	return ports.DrivingTimesResult{Legs: legs, Requests: 1, Degraded: f.degraded}, nil
}
