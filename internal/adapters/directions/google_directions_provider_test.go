package directions

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"pool-dispatch-service/internal/domain"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

func parseLatLng(t *testing.T, s string) domain.Coordinates {
	t.Helper()

	parts := strings.Split(s, ",")
	require.Len(t, parts, 2)
	lat, err := strconv.ParseFloat(parts[0], 64)
	require.NoError(t, err)
	lng, err := strconv.ParseFloat(parts[1], 64)
	require.NoError(t, err)
	return domain.Coordinates{Lat: lat, Lon: lng}
}

// requestPoints rebuilds the ordered point list of a directions request.
func requestPoints(t *testing.T, q url.Values) (points []domain.Coordinates, optimize bool) {
	t.Helper()

	points = append(points, parseLatLng(t, q.Get("origin")))
	if wp := q.Get("waypoints"); wp != "" {
		for _, p := range strings.Split(wp, "|") {
			if p == "optimize:true" {
				optimize = true
				continue
			}
			points = append(points, parseLatLng(t, p))
		}
	}
	points = append(points, parseLatLng(t, q.Get("destination")))
	return points, optimize
}

type fakeLeg struct {
	Duration textValue `json:"duration"`
	Distance textValue `json:"distance"`
}

// okResponse reports leg i with a duration equal to 100 times the latitude
// of its starting point, so tests can tell which pair a leg belongs to.
func okResponse(points []domain.Coordinates, waypointOrder []int) map[string]any {
	legs := make([]fakeLeg, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		v := int(math.Round(points[i].Lat * 100))
		legs = append(legs, fakeLeg{
			Duration: textValue{Value: v, Text: strconv.Itoa(v) + " secs"},
			Distance: textValue{Value: 10 * v, Text: "x"},
		})
	}

	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}

	return map[string]any{
		"status": "OK",
		"routes": []map[string]any{{
			"waypoint_order":    waypointOrder,
			"legs":              legs,
			"overview_polyline": map[string]string{"points": string(polyline.EncodeCoords(coords))},
		}},
	}
}

func line(n int) []domain.Coordinates {
	out := make([]domain.Coordinates, n)
	for i := range out {
		out[i] = domain.Coordinates{Lat: float64(i) / 100, Lon: -112}
	}
	return out
}

func newTestProvider(srv *httptest.Server, opts Options) *GoogleDirectionsProvider {
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	opts.BaseURL = srv.URL
	opts.HTTPClient = srv.Client()
	g := NewGoogleDirectionsProvider(opts)
	g.backoff = time.Millisecond
	return g
}

func TestOptimize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		points, optimize := requestPoints(t, r.URL.Query())
		assert.True(t, optimize)
		assert.Len(t, points, 4)

		_ = json.NewEncoder(w).Encode(okResponse(points, []int{1, 0}))
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{})
	route, err := g.Optimize(context.Background(), line(4))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0}, route.WaypointOrder)
	require.Len(t, route.Legs, 3)
	assert.Equal(t, 1, route.Legs[1].DurationSeconds)
	assert.Equal(t, "1 secs", route.Legs[1].DurationText)
	assert.Equal(t, 10, route.Legs[1].DistanceMeters)

	require.Len(t, route.Path, 4)
	assert.InDelta(t, 0.03, route.Path[3].Lat, 1e-5)
	assert.InDelta(t, -112, route.Path[3].Lon, 1e-5)
}

func TestOptimizeRejectsTooManyPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{MaxWaypoints: 5})
	_, err := g.Optimize(context.Background(), line(6))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestProviderStatusNotOKIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{})
	_, err := g.Optimize(context.Background(), line(3))
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesTransientHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		points, _ := requestPoints(t, r.URL.Query())
		_ = json.NewEncoder(w).Encode(okResponse(points, nil))
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{})
	res, err := g.DrivingTimes(context.Background(), line(3))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{})
	_, err := g.Optimize(context.Background(), line(3))
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMissingAPIKeyIsUnavailable(t *testing.T) {
	g := NewGoogleDirectionsProvider(Options{BaseURL: "http://127.0.0.1:1"})

	_, err := g.Optimize(context.Background(), line(3))
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = g.DrivingTimes(context.Background(), line(3))
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestDrivingTimesBatchesByWaypointLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		requests [][]domain.Coordinates
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		points, optimize := requestPoints(t, r.URL.Query())
		assert.False(t, optimize)
		assert.LessOrEqual(t, len(points), 27)

		mu.Lock()
		requests = append(requests, points)
		mu.Unlock()

		_ = json.NewEncoder(w).Encode(okResponse(points, nil))
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{MaxWaypoints: 27, MaxConcurrency: 2})
	res, err := g.DrivingTimes(context.Background(), line(40))
	require.NoError(t, err)

	// ceil(39 / 26) requests.
	assert.Equal(t, 2, res.Requests)
	assert.Len(t, requests, 2)
	assert.False(t, res.Degraded)

	// Leg i starts at point i: every adjacent pair is covered once, in order.
	require.Len(t, res.Legs, 39)
	for i, leg := range res.Legs {
		require.NotNil(t, leg, "leg %d", i)
		assert.Equal(t, i, leg.DurationSeconds, "leg %d", i)
	}
}

func TestDrivingTimesPartialFailureIsDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		points, _ := requestPoints(t, r.URL.Query())
		if points[0].Lat > 0.2 {
			_, _ = w.Write([]byte(`{"status":"UNKNOWN_ERROR"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(okResponse(points, nil))
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{MaxWaypoints: 27})
	res, err := g.DrivingTimes(context.Background(), line(40))
	require.NoError(t, err)
	assert.True(t, res.Degraded)

	for i, leg := range res.Legs {
		if i < 26 {
			assert.NotNil(t, leg, "leg %d", i)
		} else {
			assert.Nil(t, leg, "leg %d", i)
		}
	}
}

func TestDrivingTimesTotalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT"}`))
	}))
	defer srv.Close()

	g := newTestProvider(srv, Options{})
	res, err := g.DrivingTimes(context.Background(), line(5))
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.True(t, res.Degraded)
}

type memoryLegCache struct {
	mu   sync.Mutex
	legs map[string]domain.Leg
}

func (c *memoryLegCache) GetMany(ctx context.Context, keys []string) (map[string]domain.Leg, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]domain.Leg)
	for _, k := range keys {
		if l, ok := c.legs[k]; ok {
			out[k] = l
		}
	}
	return out, nil
}

func (c *memoryLegCache) PutMany(ctx context.Context, legs map[string]domain.Leg) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, l := range legs {
		c.legs[k] = l
	}
	return nil
}

func TestDrivingTimesUsesLegCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		points, _ := requestPoints(t, r.URL.Query())
		_ = json.NewEncoder(w).Encode(okResponse(points, nil))
	}))
	defer srv.Close()

	cache := &memoryLegCache{legs: map[string]domain.Leg{}}
	g := newTestProvider(srv, Options{MaxWaypoints: 10, Cache: cache})

	first, err := g.DrivingTimes(context.Background(), line(12))
	require.NoError(t, err)
	assert.Equal(t, 2, first.Requests)
	assert.Len(t, cache.legs, 11)

	second, err := g.DrivingTimes(context.Background(), line(12))
	require.NoError(t, err)
	assert.Zero(t, second.Requests)
	assert.Equal(t, int32(2), calls.Load())
	for i, leg := range second.Legs {
		require.NotNil(t, leg)
		assert.Equal(t, i, leg.DurationSeconds)
	}
}

func TestWindows(t *testing.T) {
	tests := []struct {
		n, limit int
		want     []window
	}{
		{n: 1, limit: 27, want: nil},
		{n: 2, limit: 27, want: []window{{0, 2}}},
		{n: 27, limit: 27, want: []window{{0, 27}}},
		{n: 28, limit: 27, want: []window{{0, 27}, {26, 28}}},
		{n: 40, limit: 27, want: []window{{0, 27}, {26, 40}}},
		{n: 53, limit: 27, want: []window{{0, 27}, {26, 53}}},
		{n: 54, limit: 27, want: []window{{0, 27}, {26, 53}, {52, 54}}},
		{n: 5, limit: 2, want: []window{{0, 2}, {1, 3}, {2, 4}, {3, 5}}},
	}

	for _, tt := range tests {
		got := windows(tt.n, tt.limit)
		assert.Equal(t, tt.want, got, "n=%d limit=%d", tt.n, tt.limit)
	}
}

func TestMockDirectionsProvider(t *testing.T) {
	m := NewMockDirectionsProvider()

	route, err := m.Optimize(context.Background(), line(4))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, route.WaypointOrder)
	require.Len(t, route.Legs, 3)
	// 0.01 degree of latitude is about 0.69 miles, 83 seconds at 30 mph.
	assert.InDelta(t, 83, route.Legs[0].DurationSeconds, 1)

	res, err := m.DrivingTimes(context.Background(), line(40))
	require.NoError(t, err)
	assert.Len(t, res.Legs, 39)
	assert.Equal(t, 2, res.Requests)
}
