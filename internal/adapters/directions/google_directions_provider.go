package directions

import (
	"context"
	"fmt"
	"net/http"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"pool-dispatch-service/internal/ports"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxWaypoints is the provider's per-request limit on origin,
// destination and intermediate points combined.
const DefaultMaxWaypoints = 27

// Options configures a GoogleDirectionsProvider. Zero values pick defaults.
type Options struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	MaxWaypoints   int
	MaxConcurrency int
	Cache          ports.LegCache
	Metrics        *obs.Metrics
	HTTPClient     *http.Client
}

// GoogleDirectionsProvider implements DirectionsProvider against the
// Google Directions JSON API.
//
// It coordinates:
//   - Waypoint-optimized route requests
//   - Batched driving-time requests with bounded concurrency
//   - An optional persistent leg cache
//   - Retry with backoff on transient failures
//
// The provider is safe for concurrent use.
type GoogleDirectionsProvider struct {
	session        *http.Client
	apiKey         string
	baseURL        string
	timeout        time.Duration
	maxWaypoints   int
	maxConcurrency int
	cache          ports.LegCache
	metrics        *obs.Metrics

	maxAttempts int
	backoff     time.Duration
}

func NewGoogleDirectionsProvider(opts Options) *GoogleDirectionsProvider {
	g := &GoogleDirectionsProvider{
		session:        opts.HTTPClient,
		apiKey:         opts.APIKey,
		baseURL:        opts.BaseURL,
		timeout:        opts.Timeout,
		maxWaypoints:   opts.MaxWaypoints,
		maxConcurrency: opts.MaxConcurrency,
		cache:          opts.Cache,
		metrics:        opts.Metrics,
		maxAttempts:    4,
		backoff:        200 * time.Millisecond,
	}

	if g.timeout <= 0 {
		g.timeout = 10 * time.Second
	}
	if g.session == nil {
		g.session = &http.Client{Timeout: g.timeout}
	}
	if g.baseURL == "" {
		g.baseURL = "https://maps.googleapis.com"
	}
	if g.maxWaypoints < 2 {
		g.maxWaypoints = DefaultMaxWaypoints
	}
	if g.maxConcurrency < 1 {
		g.maxConcurrency = 1
	}

	return g
}

func (g *GoogleDirectionsProvider) MaxWaypoints() int { return g.maxWaypoints }

func (g *GoogleDirectionsProvider) Optimize(
	ctx context.Context,
	points []domain.Coordinates,
) (_ ports.DirectionsRoute, err error) {
	defer obs.Time(ctx, "directions.Optimize")(&err)

	if g.apiKey == "" {
		g.metrics.DirectionsRequest("optimize", "unavailable")
		return ports.DirectionsRoute{}, fmt.Errorf("optimize: no api key configured: %w", domain.ErrUnavailable)
	}
	if len(points) < 2 || len(points) > g.maxWaypoints {
		return ports.DirectionsRoute{}, fmt.Errorf(
			"optimize: %d points outside 2..%d: %w",
			len(points), g.maxWaypoints, domain.ErrInvalidRequest,
		)
	}

	route, err := g.fetchRoute(ctx, points, true)
	if err != nil {
		g.metrics.DirectionsRequest("optimize", "unavailable")
		return ports.DirectionsRoute{}, fmt.Errorf("optimize: %w", err)
	}
	g.metrics.DirectionsRequest("optimize", "ok")

	return route, nil
}

// window is a half-open range of point indices served by one request.
type window struct{ Start, End int }

// windows splits n points into overlapping runs of at most limit points.
// The last point of a window is the first of the next, so each adjacent
// pair lands in exactly one window.
func windows(n, limit int) []window {
	if n < 2 {
		return nil
	}

	step := limit - 1
	out := make([]window, 0, (n-1+step-1)/step)
	for start := 0; start < n-1; start += step {
		out = append(out, window{Start: start, End: min(start+limit, n)})
	}
	return out
}

func legKey(from, to domain.Coordinates) string {
	return from.LatLng() + "|" + to.LatLng()
}

// DrivingTimes returns one leg per adjacent pair of points. Windows that fail
// leave nil legs and mark the result degraded; the call itself fails only
// when no leg at all could be produced.
func (g *GoogleDirectionsProvider) DrivingTimes(
	ctx context.Context,
	points []domain.Coordinates,
) (_ ports.DrivingTimesResult, err error) {
	defer obs.Time(ctx, "directions.DrivingTimes")(&err)

	out := ports.DrivingTimesResult{Legs: make([]*domain.Leg, max(len(points)-1, 0))}
	if len(points) < 2 {
		return out, nil
	}
	if g.apiKey == "" {
		g.metrics.DirectionsRequest("driving_times", "unavailable")
		return out, fmt.Errorf("driving times: no api key configured: %w", domain.ErrUnavailable)
	}

	cached := g.cachedLegs(ctx, points)

	var (
		mu     sync.Mutex
		failed int
		fresh  = make(map[string]domain.Leg)
	)

	var eg errgroup.Group
	eg.SetLimit(g.maxConcurrency)

	for _, w := range windows(len(points), g.maxWaypoints) {
		complete := true
		for i := w.Start; i < w.End-1; i++ {
			if leg, ok := cached[legKey(points[i], points[i+1])]; ok {
				out.Legs[i] = &leg
			} else {
				complete = false
			}
		}
		if complete {
			g.metrics.DirectionsRequest("driving_times", "cached")
			continue
		}

		out.Requests++
		eg.Go(func() error {
			route, err := g.fetchRoute(ctx, points[w.Start:w.End], false)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed++
				g.metrics.DirectionsRequest("driving_times", "unavailable")
				zerolog.Ctx(ctx).Warn().Err(err).
					Int("window_start", w.Start).
					Int("window_end", w.End).
					Msg("driving time window unavailable")
				return nil
			}

			g.metrics.DirectionsRequest("driving_times", "ok")
			for i, leg := range route.Legs {
				out.Legs[w.Start+i] = &leg
				fresh[legKey(points[w.Start+i], points[w.Start+i+1])] = leg
			}
			return nil
		})
	}
	_ = eg.Wait()

	if g.cache != nil && len(fresh) > 0 {
		if err := g.cache.PutMany(ctx, fresh); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("leg cache write failed")
		}
	}

	if failed > 0 {
		out.Degraded = true

		filled := 0
		for _, l := range out.Legs {
			if l != nil {
				filled++
			}
		}
		if filled == 0 {
			return out, fmt.Errorf("driving times: all %d requests failed: %w", failed, domain.ErrUnavailable)
		}
	}

	return out, nil
}

// cachedLegs looks up every adjacent pair. Cache failures count as misses.
func (g *GoogleDirectionsProvider) cachedLegs(ctx context.Context, points []domain.Coordinates) map[string]domain.Leg {
	if g.cache == nil {
		return nil
	}

	keys := make([]string, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		keys = append(keys, legKey(points[i], points[i+1]))
	}

	hits, err := g.cache.GetMany(ctx, keys)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("leg cache read failed")
		return nil
	}
	return hits
}
