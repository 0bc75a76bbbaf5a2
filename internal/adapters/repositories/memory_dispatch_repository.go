package repositories

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/ports"
	"slices"
	"sync"
	"time"
)

// In-memory implementation of the DispatchRepository port.
//
// Transactions are serialized and staged: WithinTx hands fn a repository
// over a private copy of the data and swaps it in only when fn succeeds, so
// readers never observe partial writes. Writes made outside a transaction
// wait for a running one to finish. Records are copied on the way in and
// out so callers never share state with the store.
type MemoryDispatchRepository struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memoryData

	// staged marks a transaction-scoped view.
	staged bool
}

type memoryData struct {
	technicians map[string]domain.Technician
	clients     map[string]domain.Client
	routes      map[string]domain.Route
	stops       map[string]domain.RouteStop
	assignments map[string]domain.MaintenanceAssignment
	jobs        map[string]domain.Job
}

func NewMemoryDispatchRepository() *MemoryDispatchRepository {
	return &MemoryDispatchRepository{data: memoryData{
		technicians: map[string]domain.Technician{},
		clients:     map[string]domain.Client{},
		routes:      map[string]domain.Route{},
		stops:       map[string]domain.RouteStop{},
		assignments: map[string]domain.MaintenanceAssignment{},
		jobs:        map[string]domain.Job{},
	}}
}

// Shallow map copies suffice: values are copied again on every read and
// pointer fields are never mutated in place.
func (d memoryData) clone() memoryData {
	return memoryData{
		technicians: maps.Clone(d.technicians),
		clients:     maps.Clone(d.clients),
		routes:      maps.Clone(d.routes),
		stops:       maps.Clone(d.stops),
		assignments: maps.Clone(d.assignments),
		jobs:        maps.Clone(d.jobs),
	}
}

func (m *MemoryDispatchRepository) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, repo ports.DispatchRepository) error,
) error {
	if m.staged {
		return fn(ctx, m)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	tx := &MemoryDispatchRepository{data: m.data.clone(), staged: true}
	m.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.mu.Lock()
	committed := tx.data
	tx.mu.Unlock()

	m.mu.Lock()
	m.data = committed
	m.mu.Unlock()
	return nil
}

// lockForWrite takes the data lock for writing. Outside a transaction it
// also waits out any running one so a commit cannot overwrite the write.
func (m *MemoryDispatchRepository) lockForWrite() (unlock func()) {
	if !m.staged {
		m.txMu.Lock()
	}
	m.mu.Lock()

	return func() {
		m.mu.Unlock()
		if !m.staged {
			m.txMu.Unlock()
		}
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

func (m *MemoryDispatchRepository) GetRoute(ctx context.Context, orgID, routeID string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.data.routes[routeID]
	if !ok || r.OrganizationID != orgID {
		return nil, notFound("route", routeID)
	}
	return &r, nil
}

// LockRoute only checks existence; WithinTx already serializes writers.
func (m *MemoryDispatchRepository) LockRoute(ctx context.Context, orgID, routeID string) (*domain.Route, error) {
	return m.GetRoute(ctx, orgID, routeID)
}

func (m *MemoryDispatchRepository) ListRoutes(ctx context.Context, orgID string) ([]*domain.Route, error) {
	return m.listRoutes(orgID, func(domain.Route) bool { return true }), nil
}

func (m *MemoryDispatchRepository) ListRoutesByDay(ctx context.Context, orgID string, day domain.DayOfWeek) ([]*domain.Route, error) {
	return m.listRoutes(orgID, func(r domain.Route) bool { return r.DayOfWeek == day }), nil
}

func (m *MemoryDispatchRepository) listRoutes(orgID string, keep func(domain.Route) bool) []*domain.Route {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Route, 0)
	for _, r := range m.data.routes {
		if r.OrganizationID == orgID && keep(r) {
			out = append(out, &r)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Route) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (m *MemoryDispatchRepository) UpdateRouteTechnician(ctx context.Context, orgID, routeID string, technicianID *string) error {
	defer m.lockForWrite()()

	r, ok := m.data.routes[routeID]
	if !ok || r.OrganizationID != orgID {
		return notFound("route", routeID)
	}
	r.TechnicianID = copyPtr(technicianID)
	m.data.routes[routeID] = r
	return nil
}

// routeInOrg must be called with mu held.
func (m *MemoryDispatchRepository) routeInOrg(orgID, routeID string) bool {
	r, ok := m.data.routes[routeID]
	return ok && r.OrganizationID == orgID
}

func (m *MemoryDispatchRepository) GetStop(ctx context.Context, orgID, stopID string) (*domain.RouteStop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.data.stops[stopID]
	if !ok || !m.routeInOrg(orgID, s.RouteID) {
		return nil, notFound("stop", stopID)
	}
	return &s, nil
}

func (m *MemoryDispatchRepository) ListStops(ctx context.Context, orgID, routeID string) ([]*domain.RouteStop, error) {
	m.mu.RLock()
	inOrg := m.routeInOrg(orgID, routeID)
	m.mu.RUnlock()
	if !inOrg {
		return nil, notFound("route", routeID)
	}
	return m.ListStopsForRoutes(ctx, orgID, []string{routeID})
}

func (m *MemoryDispatchRepository) ListStopsForRoutes(ctx context.Context, orgID string, routeIDs []string) ([]*domain.RouteStop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]struct{}, len(routeIDs))
	for _, id := range routeIDs {
		if m.routeInOrg(orgID, id) {
			wanted[id] = struct{}{}
		}
	}

	out := make([]*domain.RouteStop, 0)
	for _, s := range m.data.stops {
		if _, ok := wanted[s.RouteID]; ok {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *domain.RouteStop) int {
		return cmp.Or(
			cmp.Compare(a.RouteID, b.RouteID),
			cmp.Compare(a.OrderIndex, b.OrderIndex),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (m *MemoryDispatchRepository) CreateStop(ctx context.Context, orgID string, stop *domain.RouteStop) error {
	defer m.lockForWrite()()

	if !m.routeInOrg(orgID, stop.RouteID) {
		return notFound("route", stop.RouteID)
	}
	if _, exists := m.data.stops[stop.ID]; exists {
		return fmt.Errorf("create stop %s: %w", stop.ID, domain.ErrConflict)
	}
	m.data.stops[stop.ID] = copyStop(*stop)
	return nil
}

func (m *MemoryDispatchRepository) UpdateStopPlacement(ctx context.Context, orgID, stopID, routeID string, orderIndex int) error {
	defer m.lockForWrite()()

	s, ok := m.data.stops[stopID]
	if !ok || !m.routeInOrg(orgID, s.RouteID) {
		return notFound("stop", stopID)
	}
	if !m.routeInOrg(orgID, routeID) {
		return notFound("route", routeID)
	}
	s.RouteID = routeID
	s.OrderIndex = orderIndex
	m.data.stops[stopID] = s
	return nil
}

func (m *MemoryDispatchRepository) ListAssignmentsByDate(ctx context.Context, orgID string, date time.Time) ([]*domain.MaintenanceAssignment, error) {
	day := domain.DateOf(date)
	return m.listAssignments(orgID, func(a domain.MaintenanceAssignment) bool { return a.Date.Equal(day) }), nil
}

func (m *MemoryDispatchRepository) ListAssignmentsByJobs(ctx context.Context, orgID string, jobIDs []string) ([]*domain.MaintenanceAssignment, error) {
	return m.listAssignments(orgID, func(a domain.MaintenanceAssignment) bool { return slices.Contains(jobIDs, a.JobID) }), nil
}

func (m *MemoryDispatchRepository) listAssignments(orgID string, keep func(domain.MaintenanceAssignment) bool) []*domain.MaintenanceAssignment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.MaintenanceAssignment, 0)
	for _, a := range m.data.assignments {
		if a.OrganizationID == orgID && keep(a) {
			out = append(out, &a)
		}
	}
	slices.SortFunc(out, func(a, b *domain.MaintenanceAssignment) int {
		return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// CreateAssignment enforces one assignment per job and date.
func (m *MemoryDispatchRepository) CreateAssignment(ctx context.Context, a *domain.MaintenanceAssignment) error {
	defer m.lockForWrite()()

	if !m.routeInOrg(a.OrganizationID, a.RouteID) {
		return notFound("route", a.RouteID)
	}
	date := domain.DateOf(a.Date)
	for _, existing := range m.data.assignments {
		if existing.JobID == a.JobID && existing.Date.Equal(date) {
			return fmt.Errorf("assignment for job %s on %s: %w", a.JobID, date.Format(domain.DateLayout), domain.ErrConflict)
		}
	}

	stored := *a
	stored.Date = date
	m.data.assignments[a.ID] = stored
	return nil
}

func (m *MemoryDispatchRepository) ReassignStopAssignments(ctx context.Context, orgID, stopID, routeID string) error {
	defer m.lockForWrite()()

	if !m.routeInOrg(orgID, routeID) {
		return notFound("route", routeID)
	}
	for id, a := range m.data.assignments {
		if a.OrganizationID == orgID && a.RouteStopID == stopID {
			a.RouteID = routeID
			m.data.assignments[id] = a
		}
	}
	return nil
}

func (m *MemoryDispatchRepository) GetTechnician(ctx context.Context, orgID, technicianID string) (*domain.Technician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.data.technicians[technicianID]
	if !ok || t.OrganizationID != orgID {
		return nil, notFound("technician", technicianID)
	}
	return &t, nil
}

func (m *MemoryDispatchRepository) ListTechnicians(ctx context.Context, orgID string) ([]*domain.Technician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Technician, 0)
	for _, t := range m.data.technicians {
		if t.OrganizationID == orgID {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Technician) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryDispatchRepository) GetClient(ctx context.Context, orgID, clientID string) (*domain.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.data.clients[clientID]
	if !ok || c.OrganizationID != orgID {
		return nil, notFound("client", clientID)
	}
	return &c, nil
}

func (m *MemoryDispatchRepository) ListClients(ctx context.Context, orgID string) ([]*domain.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Client, 0)
	for _, c := range m.data.clients {
		if c.OrganizationID == orgID {
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Client) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryDispatchRepository) GetJob(ctx context.Context, orgID, jobID string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.data.jobs[jobID]
	if !ok || j.OrganizationID != orgID {
		return nil, notFound("job", jobID)
	}
	return &j, nil
}

func (m *MemoryDispatchRepository) ListJobs(ctx context.Context, orgID string, filter ports.JobFilter) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Job, 0)
	for _, j := range m.data.jobs {
		if j.OrganizationID != orgID {
			continue
		}
		if filter.ClientID != "" && j.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Date != nil && !domain.DateOf(j.ScheduledDate).Equal(domain.DateOf(*filter.Date)) {
			continue
		}
		out = append(out, &j)
	}
	slices.SortFunc(out, func(a, b *domain.Job) int {
		return cmp.Or(a.ScheduledDate.Compare(b.ScheduledDate), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Seed loads reference data directly, bypassing organization checks.
func (m *MemoryDispatchRepository) Seed(ctx context.Context, data SeedData) error {
	defer m.lockForWrite()()

	for _, t := range data.Technicians {
		m.data.technicians[t.ID] = t
	}
	for _, c := range data.Clients {
		m.data.clients[c.ID] = c
	}
	for _, r := range data.Routes {
		m.data.routes[r.ID] = r
	}
	for _, s := range data.Stops {
		m.data.stops[s.ID] = copyStop(s)
	}
	for _, j := range data.Jobs {
		j.ScheduledDate = domain.DateOf(j.ScheduledDate)
		m.data.jobs[j.ID] = j
	}
	for _, a := range data.Assignments {
		a.Date = domain.DateOf(a.Date)
		m.data.assignments[a.ID] = a
	}
	return nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyStop(s domain.RouteStop) domain.RouteStop {
	s.CustomInstructions = copyPtr(s.CustomInstructions)
	s.Coordinates = copyPtr(s.Coordinates)
	return s
}
