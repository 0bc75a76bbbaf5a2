package ports

import (
	"context"
	"pool-dispatch-service/internal/domain"
	"time"
)

// JobFilter narrows job lookups. Zero values are ignored.
type JobFilter struct {
	ClientID string
	Date     *time.Time
	Status   domain.JobStatus
}

// Port: data access for routes, stops, assignments and the records they
// reference. Every lookup is scoped by organization; records of another
// organization are reported as domain.ErrNotFound.
type DispatchRepository interface {
	GetRoute(ctx context.Context, orgID, routeID string) (*domain.Route, error)
	// Fetch a route and hold it for update until the surrounding
	// transaction ends.
	LockRoute(ctx context.Context, orgID, routeID string) (*domain.Route, error)
	ListRoutes(ctx context.Context, orgID string) ([]*domain.Route, error)
	ListRoutesByDay(ctx context.Context, orgID string, day domain.DayOfWeek) ([]*domain.Route, error)
	UpdateRouteTechnician(ctx context.Context, orgID, routeID string, technicianID *string) error

	GetStop(ctx context.Context, orgID, stopID string) (*domain.RouteStop, error)
	// Stops come back ordered by OrderIndex.
	ListStops(ctx context.Context, orgID, routeID string) ([]*domain.RouteStop, error)
	ListStopsForRoutes(ctx context.Context, orgID string, routeIDs []string) ([]*domain.RouteStop, error)
	CreateStop(ctx context.Context, orgID string, stop *domain.RouteStop) error
	UpdateStopPlacement(ctx context.Context, orgID, stopID, routeID string, orderIndex int) error

	ListAssignmentsByDate(ctx context.Context, orgID string, date time.Time) ([]*domain.MaintenanceAssignment, error)
	ListAssignmentsByJobs(ctx context.Context, orgID string, jobIDs []string) ([]*domain.MaintenanceAssignment, error)
	CreateAssignment(ctx context.Context, a *domain.MaintenanceAssignment) error
	// Point every assignment of a stop at a new route.
	ReassignStopAssignments(ctx context.Context, orgID, stopID, routeID string) error

	GetTechnician(ctx context.Context, orgID, technicianID string) (*domain.Technician, error)
	ListTechnicians(ctx context.Context, orgID string) ([]*domain.Technician, error)
	GetClient(ctx context.Context, orgID, clientID string) (*domain.Client, error)
	ListClients(ctx context.Context, orgID string) ([]*domain.Client, error)
	GetJob(ctx context.Context, orgID, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, orgID string, filter JobFilter) ([]*domain.Job, error)

	// Run fn against a transactional view of the repository. fn's writes are
	// committed together or not at all.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo DispatchRepository) error) error
}
