package services

import (
	"context"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"pool-dispatch-service/internal/ports"

	"github.com/rs/zerolog"
)

// OptimizeMethod records how an optimized order was produced.
type OptimizeMethod string

const (
	MethodDirections      OptimizeMethod = "directions"
	MethodNearestNeighbor OptimizeMethod = "nearest_neighbor"
	MethodNone            OptimizeMethod = "none"
)

// OptimizeResult is the outcome of OptimizeRoute.
//
// Degraded is set when directions data was wanted but could not be obtained
// (no provider, provider failure, or some driving-time windows failed).
// Stops lacking coordinates trail the optimized stops in original order.
type OptimizeResult struct {
	Stops                []*domain.RouteStop
	DrivingTimes         []domain.DrivingTime
	Method               OptimizeMethod
	Degraded             bool
	NoOptimizationNeeded bool
	Path                 []domain.Coordinates
}

// DrivingTimesResult is the outcome of RouteDrivingTimes.
type DrivingTimesResult struct {
	DrivingTimes []domain.DrivingTime
	Degraded     bool
}

// OptimizeRoute reorders a route's stops and persists the new order.
//
// The directions provider reorders the stops when it is configured and the
// geocoded stops fit in one request. Otherwise, or when the provider fails,
// the nearest-neighbor heuristic decides the order. Provider failures never
// fail the call.
func (d *Dispatcher) OptimizeRoute(ctx context.Context, orgID, routeID string) (_ *OptimizeResult, err error) {
	defer obs.Time(ctx, "dispatch.OptimizeRoute")(&err)

	if _, err := d.repo.GetRoute(ctx, orgID, routeID); err != nil {
		return nil, internalErr("optimize route", err)
	}

	stops, points, err := d.resolveStopCoordinates(ctx, orgID, routeID)
	if err != nil {
		return nil, internalErr("optimize route", err)
	}

	geocoded, missing := partitionGeocoded(points)
	if len(geocoded) <= 1 {
		d.metrics.RouteOptimized(string(MethodNone))
		return &OptimizeResult{
			Stops:                stops,
			DrivingTimes:         []domain.DrivingTime{},
			Method:               MethodNone,
			NoOptimizationNeeded: true,
		}, nil
	}

	coords := make([]domain.Coordinates, len(geocoded))
	for i, idx := range geocoded {
		coords[i] = *points[idx]
	}

	res := &OptimizeResult{DrivingTimes: []domain.DrivingTime{}}
	var ordered []int // positions within geocoded
	var legs []*domain.Leg

	switch {
	case d.directions == nil:
		res.Degraded = true

	case len(coords) <= d.directions.MaxWaypoints():
		route, err := d.directions.Optimize(ctx, coords)
		if err == nil {
			ordered, err = applyWaypointOrder(len(coords), route.WaypointOrder)
		}
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("route_id", routeID).
				Msg("directions optimize unavailable, falling back to nearest neighbor")
			ordered = nil
			res.Degraded = true
			break
		}

		res.Method = MethodDirections
		res.Path = route.Path
		for i := range route.Legs {
			legs = append(legs, &route.Legs[i])
		}
	}

	if ordered == nil {
		seq := SequenceNearestNeighbor(pointers(coords))
		ordered = seq.Order
		res.Method = MethodNearestNeighbor

		// Too many stops for one optimize request: the order is local, but
		// driving times can still be fetched in batches.
		if d.directions != nil && !res.Degraded {
			dt, err := d.directions.DrivingTimes(ctx, reorder(coords, ordered))
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("route_id", routeID).Msg("driving times unavailable")
				res.Degraded = true
			} else {
				legs = dt.Legs
				res.Degraded = dt.Degraded
			}
		}
	}

	final := make([]*domain.RouteStop, 0, len(stops))
	for _, pos := range ordered {
		final = append(final, stops[geocoded[pos]])
	}
	for _, idx := range missing {
		final = append(final, stops[idx])
	}

	if err := d.persistOrder(ctx, orgID, routeID, final); err != nil {
		return nil, internalErr("optimize route", err)
	}

	res.Stops = final
	res.DrivingTimes = attributeLegs(final, legs)
	d.metrics.RouteOptimized(string(res.Method))

	return res, nil
}

// RouteDrivingTimes reports leg durations between consecutive geocoded stops
// of a route in its current order. Provider failures yield an empty, degraded
// result rather than an error.
func (d *Dispatcher) RouteDrivingTimes(ctx context.Context, orgID, routeID string) (*DrivingTimesResult, error) {
	if _, err := d.repo.GetRoute(ctx, orgID, routeID); err != nil {
		return nil, internalErr("route driving times", err)
	}

	stops, points, err := d.resolveStopCoordinates(ctx, orgID, routeID)
	if err != nil {
		return nil, internalErr("route driving times", err)
	}

	geocoded, _ := partitionGeocoded(points)
	out := &DrivingTimesResult{DrivingTimes: []domain.DrivingTime{}}
	if len(geocoded) < 2 {
		return out, nil
	}
	if d.directions == nil {
		out.Degraded = true
		return out, nil
	}

	coords := make([]domain.Coordinates, len(geocoded))
	seq := make([]*domain.RouteStop, len(geocoded))
	for i, idx := range geocoded {
		coords[i] = *points[idx]
		seq[i] = stops[idx]
	}

	dt, err := d.directions.DrivingTimes(ctx, coords)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("route_id", routeID).Msg("driving times unavailable")
		out.Degraded = true
		return out, nil
	}

	out.DrivingTimes = attributeLegs(seq, dt.Legs)
	out.Degraded = dt.Degraded
	return out, nil
}

// resolveStopCoordinates loads a route's stops in order together with their
// coordinates, taken from the stop cache or else from the client record.
func (d *Dispatcher) resolveStopCoordinates(ctx context.Context, orgID, routeID string) ([]*domain.RouteStop, []*domain.Coordinates, error) {
	stops, err := d.repo.ListStops(ctx, orgID, routeID)
	if err != nil {
		return nil, nil, fmt.Errorf("list stops: %w", err)
	}

	points := make([]*domain.Coordinates, len(stops))
	var clients map[string]*domain.Client
	for i, s := range stops {
		if s.Coordinates != nil {
			points[i] = s.Coordinates
			continue
		}

		if clients == nil {
			list, err := d.repo.ListClients(ctx, orgID)
			if err != nil {
				return nil, nil, fmt.Errorf("list clients: %w", err)
			}
			clients = make(map[string]*domain.Client, len(list))
			for _, c := range list {
				clients[c.ID] = c
			}
		}
		if c, ok := clients[s.ClientID]; ok && c.Coordinates != nil {
			points[i] = c.Coordinates
		}
	}

	return stops, points, nil
}

// persistOrder writes the new order in one transaction. The route's stop set
// is re-read under lock; if it changed while the order was being computed the
// write is refused.
func (d *Dispatcher) persistOrder(ctx context.Context, orgID, routeID string, final []*domain.RouteStop) error {
	return d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		if _, err := tx.LockRoute(ctx, orgID, routeID); err != nil {
			return err
		}

		current, err := tx.ListStops(ctx, orgID, routeID)
		if err != nil {
			return err
		}
		if !sameStopSet(current, final) {
			return fmt.Errorf("route %s changed during optimization: %w", routeID, domain.ErrConflict)
		}

		byID := make(map[string]*domain.RouteStop, len(current))
		for _, s := range current {
			byID[s.ID] = s
		}
		fresh := make([]*domain.RouteStop, len(final))
		for i, s := range final {
			fresh[i] = byID[s.ID]
		}

		if err := applyOrder(ctx, tx, orgID, routeID, fresh); err != nil {
			return err
		}
		for i, s := range final {
			s.OrderIndex = i
		}
		return nil
	})
}

func sameStopSet(a, b []*domain.RouteStop) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, s := range a {
		ids[s.ID] = struct{}{}
	}
	for _, s := range b {
		if _, ok := ids[s.ID]; !ok {
			return false
		}
	}
	return true
}

// applyWaypointOrder expands the provider's permutation of intermediate
// points into a full order that keeps the first and last point fixed.
func applyWaypointOrder(n int, waypointOrder []int) ([]int, error) {
	inner := n - 2
	if len(waypointOrder) != inner {
		return nil, fmt.Errorf("waypoint order has %d entries, want %d: %w", len(waypointOrder), inner, domain.ErrUnavailable)
	}

	seen := make([]bool, inner)
	order := make([]int, 0, n)
	order = append(order, 0)
	for _, w := range waypointOrder {
		if w < 0 || w >= inner || seen[w] {
			return nil, fmt.Errorf("waypoint order %v is not a permutation: %w", waypointOrder, domain.ErrUnavailable)
		}
		seen[w] = true
		order = append(order, w+1)
	}
	order = append(order, n-1)

	return order, nil
}

// attributeLegs pairs legs[i] with stops i and i+1. Missing legs are skipped.
func attributeLegs(stops []*domain.RouteStop, legs []*domain.Leg) []domain.DrivingTime {
	out := make([]domain.DrivingTime, 0, len(legs))
	for i, leg := range legs {
		if leg == nil || i+1 >= len(stops) {
			continue
		}
		out = append(out, domain.DrivingTime{
			FromStopID: stops[i].ID,
			ToStopID:   stops[i+1].ID,
			FromIndex:  stops[i].OrderIndex,
			ToIndex:    stops[i+1].OrderIndex,
			Leg:        *leg,
		})
	}
	return out
}

func pointers(coords []domain.Coordinates) []*domain.Coordinates {
	out := make([]*domain.Coordinates, len(coords))
	for i := range coords {
		out[i] = &coords[i]
	}
	return out
}

func reorder(coords []domain.Coordinates, order []int) []domain.Coordinates {
	out := make([]domain.Coordinates, 0, len(order))
	for _, i := range order {
		out = append(out, coords[i])
	}
	return out
}
