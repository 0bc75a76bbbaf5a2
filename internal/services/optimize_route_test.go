package services

import (
	"context"
	"fmt"
	"pool-dispatch-service/internal/adapters/repositories"
	"pool-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// caRoute replaces r-mon with stops C(0,10), A(0,0), B(0,1) in that order.
func caRoute(data *repositories.SeedData) {
	data.Stops = []domain.RouteStop{
		{ID: "sC", RouteID: "r-mon", ClientID: "c3", OrderIndex: 0, EstimatedMinutes: 30},
		{ID: "sA", RouteID: "r-mon", ClientID: "c1", OrderIndex: 1, EstimatedMinutes: 30},
		{ID: "sB", RouteID: "r-mon", ClientID: "c2", OrderIndex: 2, EstimatedMinutes: 30},
	}
}

func resultIDs(stops []*domain.RouteStop) []string {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

func TestOptimizeRouteWithoutProviderUsesNearestNeighbor(t *testing.T) {
	f := newFixture(t, nil, caRoute)

	res, err := f.d.OptimizeRoute(context.Background(), org, "r-mon")
	require.NoError(t, err)

	assert.Equal(t, MethodNearestNeighbor, res.Method)
	assert.True(t, res.Degraded)
	assert.False(t, res.NoOptimizationNeeded)
	assert.Empty(t, res.DrivingTimes)
	assert.Equal(t, []string{"sC", "sB", "sA"}, resultIDs(res.Stops))
	assert.Equal(t, []string{"sC", "sB", "sA"}, f.stopIDs(t, "r-mon"))
	f.requireContiguous(t, "r-mon")
}

func TestOptimizeRouteAppliesProviderWaypointOrder(t *testing.T) {
	provider := &fakeDirections{max: 27, waypointOrder: []int{1, 0}}
	f := newFixture(t, provider, func(data *repositories.SeedData) {
		data.Stops = append(data.Stops, domain.RouteStop{
			ID: "s5", RouteID: "r-mon", ClientID: "c4", OrderIndex: 3, EstimatedMinutes: 30,
		})
	})

	res, err := f.d.OptimizeRoute(context.Background(), org, "r-mon")
	require.NoError(t, err)

	assert.Equal(t, MethodDirections, res.Method)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, provider.optimizeCalls)
	assert.Zero(t, provider.drivingCalls)

	// Origin and destination stay put; the intermediates swap.
	assert.Equal(t, []string{"s1", "s3", "s2", "s5"}, resultIDs(res.Stops))
	assert.Equal(t, []string{"s1", "s3", "s2", "s5"}, f.stopIDs(t, "r-mon"))

	require.Len(t, res.DrivingTimes, 3)
	assert.Equal(t, "s1", res.DrivingTimes[0].FromStopID)
	assert.Equal(t, "s3", res.DrivingTimes[0].ToStopID)
	assert.Equal(t, 0, res.DrivingTimes[0].FromIndex)
	assert.Equal(t, 1, res.DrivingTimes[0].ToIndex)
	assert.Equal(t, 100, res.DrivingTimes[0].DurationSeconds)
	assert.Equal(t, "s5", res.DrivingTimes[2].ToStopID)
	assert.Len(t, res.Path, 4)
}

func TestOptimizeRouteFallsBackWhenProviderFails(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeDirections
	}{
		{
			name:     "provider unavailable",
			provider: &fakeDirections{max: 27, optimizeErr: fmt.Errorf("status REQUEST_DENIED: %w", domain.ErrUnavailable)},
		},
		{
			name:     "waypoint order is not a permutation",
			provider: &fakeDirections{max: 27, waypointOrder: []int{5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.provider, caRoute)

			res, err := f.d.OptimizeRoute(context.Background(), org, "r-mon")
			require.NoError(t, err)

			assert.Equal(t, MethodNearestNeighbor, res.Method)
			assert.True(t, res.Degraded)
			assert.Empty(t, res.DrivingTimes)
			assert.Zero(t, tt.provider.drivingCalls)
			assert.Equal(t, []string{"sC", "sB", "sA"}, resultIDs(res.Stops))
			f.requireContiguous(t, "r-mon")
		})
	}
}

func TestOptimizeRouteOverWaypointLimitBatchesDrivingTimes(t *testing.T) {
	provider := &fakeDirections{max: 2}
	f := newFixture(t, provider, caRoute)

	res, err := f.d.OptimizeRoute(context.Background(), org, "r-mon")
	require.NoError(t, err)

	assert.Equal(t, MethodNearestNeighbor, res.Method)
	assert.False(t, res.Degraded)
	assert.Zero(t, provider.optimizeCalls)
	assert.Equal(t, 1, provider.drivingCalls)

	// Driving times follow the new order.
	require.Len(t, provider.drivingPoints, 3)
	assert.Equal(t, *at(0, 10), provider.drivingPoints[0])
	assert.Equal(t, *at(0, 1), provider.drivingPoints[1])

	require.Len(t, res.DrivingTimes, 2)
	assert.Equal(t, "sC", res.DrivingTimes[0].FromStopID)
	assert.Equal(t, "sB", res.DrivingTimes[0].ToStopID)
	assert.Equal(t, "sA", res.DrivingTimes[1].ToStopID)
}

func TestOptimizeRouteDrivingTimesFailureStillReorders(t *testing.T) {
	provider := &fakeDirections{max: 2, drivingErr: domain.ErrUnavailable}
	f := newFixture(t, provider, caRoute)

	res, err := f.d.OptimizeRoute(context.Background(), org, "r-mon")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.DrivingTimes)
	assert.Equal(t, []string{"sC", "sB", "sA"}, f.stopIDs(t, "r-mon"))
}

func TestOptimizeRouteUngeocodedStopsGoLast(t *testing.T) {
	f := newFixture(t, nil, func(data *repositories.SeedData) {
		caRoute(data)
		data.Stops = append([]domain.RouteStop{
			{ID: "sX", RouteID: "r-mon", ClientID: "c-nogeo", OrderIndex: 0},
		}, data.Stops...)
		for i := range data.Stops {
			data.Stops[i].OrderIndex = i
		}
	})

	res, err := f.d.OptimizeRoute(context.Background(), org, "r-mon")
	require.NoError(t, err)
	assert.Equal(t, []string{"sC", "sB", "sA", "sX"}, resultIDs(res.Stops))
	f.requireContiguous(t, "r-mon")
}

func TestOptimizeRouteNothingToOptimize(t *testing.T) {
	provider := &fakeDirections{max: 27}
	f := newFixture(t, provider)

	res, err := f.d.OptimizeRoute(context.Background(), org, "r-tue")
	require.NoError(t, err)
	assert.True(t, res.NoOptimizationNeeded)
	assert.Equal(t, MethodNone, res.Method)
	assert.False(t, res.Degraded)
	assert.Zero(t, provider.optimizeCalls)
	assert.Equal(t, []string{"s4"}, resultIDs(res.Stops))

	res, err = f.d.OptimizeRoute(context.Background(), org, "r-mon-open")
	require.NoError(t, err)
	assert.True(t, res.NoOptimizationNeeded)
	assert.Empty(t, res.Stops)
}

func TestOptimizeRouteOtherOrganization(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.d.OptimizeRoute(context.Background(), org, "r-other")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRouteDrivingTimes(t *testing.T) {
	ctx := context.Background()

	t.Run("current order", func(t *testing.T) {
		provider := &fakeDirections{max: 27}
		f := newFixture(t, provider)

		res, err := f.d.RouteDrivingTimes(ctx, org, "r-mon")
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		require.Len(t, res.DrivingTimes, 2)
		assert.Equal(t, "s1", res.DrivingTimes[0].FromStopID)
		assert.Equal(t, "s2", res.DrivingTimes[0].ToStopID)
		assert.Equal(t, 2, res.DrivingTimes[1].DurationSeconds)
		assert.Equal(t, []string{"s1", "s2", "s3"}, f.stopIDs(t, "r-mon"))
	})

	t.Run("partially degraded", func(t *testing.T) {
		provider := &fakeDirections{max: 27, degraded: true}
		f := newFixture(t, provider)

		res, err := f.d.RouteDrivingTimes(ctx, org, "r-mon")
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		require.Len(t, res.DrivingTimes, 1)
		assert.Equal(t, "s2", res.DrivingTimes[0].ToStopID)
	})

	t.Run("provider failure", func(t *testing.T) {
		provider := &fakeDirections{max: 27, drivingErr: domain.ErrUnavailable}
		f := newFixture(t, provider)

		res, err := f.d.RouteDrivingTimes(ctx, org, "r-mon")
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Empty(t, res.DrivingTimes)
	})

	t.Run("no provider", func(t *testing.T) {
		f := newFixture(t, nil)

		res, err := f.d.RouteDrivingTimes(ctx, org, "r-mon")
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Empty(t, res.DrivingTimes)
	})
}

func TestApplyWaypointOrder(t *testing.T) {
	order, err := applyWaypointOrder(5, []int{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 1, 2, 4}, order)

	order, err = applyWaypointOrder(2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, order)

	_, err = applyWaypointOrder(4, []int{0, 0})
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = applyWaypointOrder(4, []int{0, 2})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
