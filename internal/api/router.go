package api

import (
	"context"
	"net/http"
	"pool-dispatch-service/internal/api/handlers"
	"pool-dispatch-service/internal/platform/obs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Dispatcher handlers.DispatchService
	Logger     zerolog.Logger
	Metrics    *obs.Metrics
	// Gatherer backs /metrics; nil selects the default registry.
	Gatherer prometheus.Gatherer
	// HealthCheck is optional and typically pings the database.
	HealthCheck func(ctx context.Context) error
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	health := &handlers.HealthHandler{Check: deps.HealthCheck}
	dispatch := &handlers.DispatchHandler{Service: deps.Dispatcher}

	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /dispatch/board", dispatch.Board)
	mux.HandleFunc("GET /dispatch/workload", dispatch.Workload)

	mux.HandleFunc("POST /routes/{routeID}/reassign", dispatch.ReassignRoute)
	mux.HandleFunc("POST /routes/{routeID}/stops/emergency", dispatch.InsertEmergencyStop)
	mux.HandleFunc("POST /routes/{routeID}/stops/{stopID}/reorder", dispatch.ReorderStop)
	mux.HandleFunc("POST /stops/{stopID}/move", dispatch.MoveStop)
	mux.HandleFunc("POST /routes/{routeID}/assign-client", dispatch.AssignClient)
	mux.HandleFunc("POST /routes/{routeID}/assign-job", dispatch.AssignJob)
	mux.HandleFunc("POST /routes/{routeID}/optimize", dispatch.OptimizeRoute)
	mux.HandleFunc("GET /routes/{routeID}/driving-times", dispatch.DrivingTimes)

	return loggingMiddleware(deps.Logger, deps.Metrics, mux)
}
