package services

import (
	"context"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/ports"
	"slices"
	"strings"
	"time"
)

type ReassignRouteRequest struct {
	RouteID string
	// CurrentTechnicianID is the technician the caller believes owns the
	// route; nil means unassigned.
	CurrentTechnicianID *string
	NewTechnicianID     string
}

// ReassignRoute hands a route to another technician. The reassignment is
// refused with domain.ErrConflict when the route's technician no longer
// matches the caller's view.
func (d *Dispatcher) ReassignRoute(ctx context.Context, orgID string, req ReassignRouteRequest) (*domain.Route, error) {
	newTech := strings.TrimSpace(req.NewTechnicianID)
	if newTech == "" {
		return nil, fmt.Errorf("reassign route: new technician is required: %w", domain.ErrInvalidRequest)
	}

	if _, err := d.repo.GetTechnician(ctx, orgID, newTech); err != nil {
		return nil, internalErr("reassign route: technician", err)
	}

	var out *domain.Route
	err := d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		route, err := tx.LockRoute(ctx, orgID, req.RouteID)
		if err != nil {
			return err
		}

		if !sameTechnician(route.TechnicianID, req.CurrentTechnicianID) {
			return fmt.Errorf("route %s is assigned to %s: %w", route.ID, describeTech(route.TechnicianID), domain.ErrConflict)
		}

		if err := tx.UpdateRouteTechnician(ctx, orgID, route.ID, &newTech); err != nil {
			return err
		}

		route.TechnicianID = &newTech
		out = route
		return nil
	})
	if err != nil {
		return nil, internalErr("reassign route", err)
	}

	return out, nil
}

func sameTechnician(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func describeTech(id *string) string {
	if id == nil {
		return "nobody"
	}
	return *id
}

type InsertStopRequest struct {
	RouteID  string
	ClientID string
	Notes    *string
	// Position is the zero-based index the stop should occupy. Nil appends.
	Position         *int
	EstimatedMinutes int
}

// InsertEmergencyStop adds a stop for a client, either at a given position
// (shifting later stops down by one) or at the end of the route.
// A position past the end appends.
func (d *Dispatcher) InsertEmergencyStop(ctx context.Context, orgID string, req InsertStopRequest) (*domain.RouteStop, error) {
	if req.Position != nil && *req.Position < 0 {
		return nil, fmt.Errorf("insert stop: position %d is negative: %w", *req.Position, domain.ErrInvalidRequest)
	}
	if req.EstimatedMinutes < 0 {
		return nil, fmt.Errorf("insert stop: estimated minutes must be positive: %w", domain.ErrInvalidRequest)
	}

	client, err := d.repo.GetClient(ctx, orgID, req.ClientID)
	if err != nil {
		return nil, internalErr("insert stop: client", err)
	}

	var out *domain.RouteStop
	err = d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		if _, err := tx.LockRoute(ctx, orgID, req.RouteID); err != nil {
			return err
		}

		stops, err := tx.ListStops(ctx, orgID, req.RouteID)
		if err != nil {
			return err
		}

		pos := len(stops)
		if req.Position != nil && *req.Position < pos {
			pos = *req.Position
		}

		stop := d.newStop(req.RouteID, client, req.EstimatedMinutes, req.Notes)
		stop.OrderIndex = pos

		ordered := slices.Insert(stops, pos, stop)
		if err := applyOrder(ctx, tx, orgID, req.RouteID, ordered); err != nil {
			return err
		}
		if err := tx.CreateStop(ctx, orgID, stop); err != nil {
			return err
		}

		out = stop
		return nil
	})
	if err != nil {
		return nil, internalErr("insert stop", err)
	}

	return out, nil
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ReorderStop swaps a stop with its neighbor in the given direction and
// returns the route's stops in their new order. Moving the first stop up or
// the last stop down leaves the route unchanged.
func (d *Dispatcher) ReorderStop(ctx context.Context, orgID, routeID, stopID string, dir Direction) ([]*domain.RouteStop, error) {
	step := 0
	switch dir {
	case DirectionUp:
		step = -1
	case DirectionDown:
		step = 1
	default:
		return nil, fmt.Errorf("reorder stop: direction %q: %w", dir, domain.ErrInvalidRequest)
	}

	var out []*domain.RouteStop
	err := d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		if _, err := tx.LockRoute(ctx, orgID, routeID); err != nil {
			return err
		}

		stops, err := tx.ListStops(ctx, orgID, routeID)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(stops, func(s *domain.RouteStop) bool { return s.ID == stopID })
		if idx < 0 {
			return fmt.Errorf("stop %s on route %s: %w", stopID, routeID, domain.ErrNotFound)
		}

		if j := idx + step; j >= 0 && j < len(stops) {
			stops[idx], stops[j] = stops[j], stops[idx]
		}

		if err := applyOrder(ctx, tx, orgID, routeID, stops); err != nil {
			return err
		}

		out = stops
		return nil
	})
	if err != nil {
		return nil, internalErr("reorder stop", err)
	}

	return out, nil
}

type MoveStopRequest struct {
	StopID string
	// FromRouteID defaults to the stop's current route when empty.
	FromRouteID string
	ToRouteID   string
}

// MoveStop re-homes a stop at the end of another route. The source route is
// renumbered so both routes keep contiguous positions, and assignments bound
// to the stop follow it.
func (d *Dispatcher) MoveStop(ctx context.Context, orgID string, req MoveStopRequest) (*domain.RouteStop, error) {
	if strings.TrimSpace(req.ToRouteID) == "" {
		return nil, fmt.Errorf("move stop: destination route is required: %w", domain.ErrInvalidRequest)
	}

	stop, err := d.repo.GetStop(ctx, orgID, req.StopID)
	if err != nil {
		return nil, internalErr("move stop", err)
	}

	from := req.FromRouteID
	if from == "" {
		from = stop.RouteID
	}
	if from == req.ToRouteID {
		return nil, fmt.Errorf("move stop: source and destination are both route %s: %w", from, domain.ErrInvalidRequest)
	}

	var out *domain.RouteStop
	err = d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		if _, err := lockRoutes(ctx, tx, orgID, from, req.ToRouteID); err != nil {
			return err
		}

		source, err := tx.ListStops(ctx, orgID, from)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(source, func(s *domain.RouteStop) bool { return s.ID == req.StopID })
		if idx < 0 {
			return fmt.Errorf("stop %s on route %s: %w", req.StopID, from, domain.ErrNotFound)
		}
		moved := source[idx]

		dest, err := tx.ListStops(ctx, orgID, req.ToRouteID)
		if err != nil {
			return err
		}

		if err := applyOrder(ctx, tx, orgID, req.ToRouteID, append(dest, moved)); err != nil {
			return err
		}
		if err := applyOrder(ctx, tx, orgID, from, slices.Delete(source, idx, idx+1)); err != nil {
			return err
		}
		if err := tx.ReassignStopAssignments(ctx, orgID, moved.ID, req.ToRouteID); err != nil {
			return err
		}

		out = moved
		return nil
	})
	if err != nil {
		return nil, internalErr("move stop", err)
	}

	return out, nil
}

// AssignResult lists what an assignment operation created and which jobs it
// left alone because they were already assigned for their date.
type AssignResult struct {
	Stops       []*domain.RouteStop
	Assignments []*domain.MaintenanceAssignment
	SkippedJobs []string
}

// BulkAssignClient puts every pending maintenance job of a client on a route.
// Jobs that already have an assignment for their date are skipped, which
// makes repeated calls idempotent.
func (d *Dispatcher) BulkAssignClient(ctx context.Context, orgID, clientID, routeID string) (*AssignResult, error) {
	client, err := d.repo.GetClient(ctx, orgID, clientID)
	if err != nil {
		return nil, internalErr("bulk assign client", err)
	}

	out := &AssignResult{}
	err = d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		if _, err := tx.LockRoute(ctx, orgID, routeID); err != nil {
			return err
		}

		jobs, err := tx.ListJobs(ctx, orgID, ports.JobFilter{ClientID: client.ID, Status: domain.JobPending})
		if err != nil {
			return err
		}
		jobs = slices.DeleteFunc(jobs, func(j *domain.Job) bool { return j.Kind != domain.JobMaintenance })
		if len(jobs) == 0 {
			return nil
		}

		assigned, err := assignedJobDates(ctx, tx, orgID, jobs)
		if err != nil {
			return err
		}

		stops, err := tx.ListStops(ctx, orgID, routeID)
		if err != nil {
			return err
		}
		next := len(stops)
		if err := applyOrder(ctx, tx, orgID, routeID, stops); err != nil {
			return err
		}

		for _, job := range jobs {
			if _, ok := assigned[jobDateKey(job.ID, job.ScheduledDate)]; ok {
				out.SkippedJobs = append(out.SkippedJobs, job.ID)
				continue
			}

			stop, a, err := d.appendJob(ctx, tx, orgID, routeID, client, job, next)
			if err != nil {
				return err
			}
			next++

			out.Stops = append(out.Stops, stop)
			out.Assignments = append(out.Assignments, a)
		}
		return nil
	})
	if err != nil {
		return nil, internalErr("bulk assign client", err)
	}

	return out, nil
}

// AssignJob puts a single job on a route. The job's notes become the stop's
// custom instructions.
func (d *Dispatcher) AssignJob(ctx context.Context, orgID, jobID, routeID string) (*AssignResult, error) {
	job, err := d.repo.GetJob(ctx, orgID, jobID)
	if err != nil {
		return nil, internalErr("assign job", err)
	}

	client, err := d.repo.GetClient(ctx, orgID, job.ClientID)
	if err != nil {
		return nil, internalErr("assign job: client", err)
	}

	out := &AssignResult{}
	err = d.repo.WithinTx(ctx, func(ctx context.Context, tx ports.DispatchRepository) error {
		if _, err := tx.LockRoute(ctx, orgID, routeID); err != nil {
			return err
		}

		assigned, err := assignedJobDates(ctx, tx, orgID, []*domain.Job{job})
		if err != nil {
			return err
		}
		if _, ok := assigned[jobDateKey(job.ID, job.ScheduledDate)]; ok {
			return fmt.Errorf("job %s already assigned on %s: %w",
				job.ID, job.ScheduledDate.Format(domain.DateLayout), domain.ErrConflict)
		}

		stops, err := tx.ListStops(ctx, orgID, routeID)
		if err != nil {
			return err
		}
		if err := applyOrder(ctx, tx, orgID, routeID, stops); err != nil {
			return err
		}

		stop, a, err := d.appendJob(ctx, tx, orgID, routeID, client, job, len(stops))
		if err != nil {
			return err
		}

		out.Stops = append(out.Stops, stop)
		out.Assignments = append(out.Assignments, a)
		return nil
	})
	if err != nil {
		return nil, internalErr("assign job", err)
	}

	return out, nil
}

func (d *Dispatcher) appendJob(
	ctx context.Context,
	tx ports.DispatchRepository,
	orgID string,
	routeID string,
	client *domain.Client,
	job *domain.Job,
	index int,
) (*domain.RouteStop, *domain.MaintenanceAssignment, error) {
	stop := d.newStop(routeID, client, job.EstimatedMinutes, job.Notes)
	stop.OrderIndex = index
	if err := tx.CreateStop(ctx, orgID, stop); err != nil {
		return nil, nil, err
	}

	a := &domain.MaintenanceAssignment{
		ID:             d.newID(),
		OrganizationID: orgID,
		JobID:          job.ID,
		RouteID:        routeID,
		RouteStopID:    stop.ID,
		Date:           domain.DateOf(job.ScheduledDate),
		Status:         domain.AssignmentScheduled,
	}
	if err := tx.CreateAssignment(ctx, a); err != nil {
		return nil, nil, err
	}

	return stop, a, nil
}

func jobDateKey(jobID string, date time.Time) string {
	return jobID + "|" + date.Format(domain.DateLayout)
}

// assignedJobDates returns the job|date keys that already have an assignment.
func assignedJobDates(ctx context.Context, repo ports.DispatchRepository, orgID string, jobs []*domain.Job) (map[string]struct{}, error) {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}

	existing, err := repo.ListAssignmentsByJobs(ctx, orgID, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		out[jobDateKey(a.JobID, a.Date)] = struct{}{}
	}
	return out, nil
}
