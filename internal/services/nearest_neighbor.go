package services

import (
	"math"
	"pool-dispatch-service/internal/domain"
)

// SequenceResult is a visiting order expressed as indices into the input.
// The first Geocoded entries of Order are the sequenced stops; the rest lack
// coordinates and keep their original relative order.
type SequenceResult struct {
	Order                []int
	Geocoded             int
	NoOptimizationNeeded bool
}

// SequenceNearestNeighbor orders points with a greedy nearest-neighbor tour.
//
// The tour starts at the first geocoded point in input order and repeatedly
// moves to the closest unvisited point by haversine distance. Ties go to the
// point that appears first in the input, so the result is deterministic.
// Nil points cannot be placed and are appended after the tour.
func SequenceNearestNeighbor(points []*domain.Coordinates) SequenceResult {
	geocoded, missing := partitionGeocoded(points)

	if len(geocoded) <= 1 {
		order := make([]int, len(points))
		for i := range order {
			order[i] = i
		}
		return SequenceResult{Order: order, Geocoded: len(geocoded), NoOptimizationNeeded: true}
	}

	visited := make([]bool, len(geocoded))
	order := make([]int, 0, len(points))

	current := 0
	visited[0] = true
	order = append(order, geocoded[0])

	for len(order) < len(geocoded) {
		best := -1
		bestDist := math.Inf(1)

		// Strict comparison keeps the earliest candidate on ties.
		for i, idx := range geocoded {
			if visited[i] {
				continue
			}
			d := domain.HaversineMiles(*points[geocoded[current]], *points[idx])
			if d < bestDist {
				bestDist = d
				best = i
			}
		}

		visited[best] = true
		order = append(order, geocoded[best])
		current = best
	}

	order = append(order, missing...)

	return SequenceResult{Order: order, Geocoded: len(geocoded)}
}

// partitionGeocoded splits input indices into points with and without
// coordinates, preserving input order within each group.
func partitionGeocoded(points []*domain.Coordinates) (geocoded, missing []int) {
	geocoded = make([]int, 0, len(points))
	for i, p := range points {
		if p == nil {
			missing = append(missing, i)
			continue
		}
		geocoded = append(geocoded, i)
	}
	return geocoded, missing
}
