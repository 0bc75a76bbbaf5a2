package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/ports"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twpayne/go-polyline"
)

type textValue struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		WaypointOrder []int `json:"waypoint_order"`
		Legs          []struct {
			Duration textValue `json:"duration"`
			Distance textValue `json:"distance"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

func directionsQuery(points []domain.Coordinates, optimize bool) map[string]string {
	q := map[string]string{
		"origin":      points[0].LatLng(),
		"destination": points[len(points)-1].LatLng(),
		"mode":        "driving",
	}

	if len(points) > 2 {
		parts := make([]string, 0, len(points)-1)
		if optimize {
			parts = append(parts, "optimize:true")
		}
		for _, p := range points[1 : len(points)-1] {
			parts = append(parts, p.LatLng())
		}
		q["waypoints"] = strings.Join(parts, "|")
	}

	return q
}

// fetchRoute issues one directions request for points in the given order.
// Every failure is reported as domain.ErrUnavailable.
func (g *GoogleDirectionsProvider) fetchRoute(
	ctx context.Context,
	points []domain.Coordinates,
	optimize bool,
) (ports.DirectionsRoute, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := g.baseURL + "/maps/api/directions/json"
	query := directionsQuery(points, optimize)

	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		return g.newRequest(ctx, endpoint, query)
	})
	if err != nil {
		return ports.DirectionsRoute{}, fmt.Errorf("directions request: %w: %w", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return ports.DirectionsRoute{}, fmt.Errorf("decode directions response: %w: %w", domain.ErrUnavailable, err)
	}

	if dr.Status != "OK" {
		return ports.DirectionsRoute{}, fmt.Errorf("directions status %s %q: %w", dr.Status, dr.ErrorMessage, domain.ErrUnavailable)
	}
	if len(dr.Routes) == 0 {
		return ports.DirectionsRoute{}, fmt.Errorf("directions response has no routes: %w", domain.ErrUnavailable)
	}

	route := dr.Routes[0]
	if len(route.Legs) != len(points)-1 {
		return ports.DirectionsRoute{}, fmt.Errorf(
			"directions returned %d legs for %d points: %w",
			len(route.Legs), len(points), domain.ErrUnavailable,
		)
	}

	out := ports.DirectionsRoute{Legs: make([]domain.Leg, 0, len(route.Legs))}
	for _, l := range route.Legs {
		out.Legs = append(out.Legs, domain.Leg{
			DurationSeconds: l.Duration.Value,
			DurationText:    l.Duration.Text,
			DistanceMeters:  l.Distance.Value,
			DistanceText:    l.Distance.Text,
		})
	}

	if optimize {
		out.WaypointOrder = route.WaypointOrder
	}

	if encoded := route.OverviewPolyline.Points; encoded != "" {
		coords, _, err := polyline.DecodeCoords([]byte(encoded))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("discarding undecodable overview polyline")
		} else {
			out.Path = make([]domain.Coordinates, 0, len(coords))
			for _, c := range coords {
				out.Path = append(out.Path, domain.Coordinates{Lat: c[0], Lon: c[1]})
			}
		}
	}

	return out, nil
}
