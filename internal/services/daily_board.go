package services

import (
	"context"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"pool-dispatch-service/internal/ports"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"
)

// DailyBoard is the dispatch view of one calendar date.
type DailyBoard struct {
	Date             time.Time
	DayOfWeek        domain.DayOfWeek
	Technicians      []TechnicianDay
	UnassignedRoutes []RouteDay
	UnassignedJobs   []UnassignedJob
}

type TechnicianDay struct {
	Technician     domain.Technician
	Status         domain.TechnicianStatus
	Routes         []RouteDay
	TotalStops     int
	EstimatedHours float64
}

type RouteDay struct {
	Route domain.Route
	Stops []BoardStop
}

// BoardStop is a stop with its client resolved and, when the stop is booked
// for the board's date, its assignment.
type BoardStop struct {
	Stop          domain.RouteStop
	ClientName    string
	ClientAddress string
	Assignment    *domain.MaintenanceAssignment
}

type UnassignedJob struct {
	Job           domain.Job
	ClientName    string
	ClientAddress string
}

// minutesToHours converts minutes to hours rounded to two decimals.
func minutesToHours(minutes int) float64 {
	return scalar.Round(float64(minutes)/60, 2)
}

// DailyBoard assembles every technician's routes, stops and status for a
// date, plus the jobs scheduled that date that nobody has been assigned.
//
// Any repository failure aborts the board with domain.ErrInternal; a partial
// board could show a busy technician as idle.
func (d *Dispatcher) DailyBoard(ctx context.Context, orgID string, date time.Time) (_ *DailyBoard, err error) {
	defer obs.Time(ctx, "dispatch.DailyBoard")(&err)

	date = domain.DateOf(date)
	day := domain.DayOfWeekOf(date)

	var (
		technicians []*domain.Technician
		routes      []*domain.Route
		clients     []*domain.Client
		assignments []*domain.MaintenanceAssignment
		jobs        []*domain.Job
		stops       []*domain.RouteStop
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		technicians, err = d.repo.ListTechnicians(gctx, orgID)
		return wrapRead("technicians", err)
	})
	g.Go(func() error {
		var err error
		if routes, err = d.repo.ListRoutesByDay(gctx, orgID, day); err != nil {
			return wrapRead("routes", err)
		}
		ids := make([]string, 0, len(routes))
		for _, r := range routes {
			ids = append(ids, r.ID)
		}
		stops, err = d.repo.ListStopsForRoutes(gctx, orgID, ids)
		return wrapRead("stops", err)
	})
	g.Go(func() (err error) {
		clients, err = d.repo.ListClients(gctx, orgID)
		return wrapRead("clients", err)
	})
	g.Go(func() (err error) {
		assignments, err = d.repo.ListAssignmentsByDate(gctx, orgID, date)
		return wrapRead("assignments", err)
	})
	g.Go(func() (err error) {
		jobs, err = d.repo.ListJobs(gctx, orgID, ports.JobFilter{Date: &date})
		return wrapRead("jobs", err)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("daily board: %w: %w", domain.ErrInternal, err)
	}

	clientByID := make(map[string]*domain.Client, len(clients))
	for _, c := range clients {
		clientByID[c.ID] = c
	}

	stopsByRoute := make(map[string][]*domain.RouteStop, len(routes))
	for _, s := range stops {
		stopsByRoute[s.RouteID] = append(stopsByRoute[s.RouteID], s)
	}

	assignmentByStop := make(map[string]*domain.MaintenanceAssignment, len(assignments))
	assignmentsByRoute := make(map[string][]*domain.MaintenanceAssignment)
	assignedJobs := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		assignmentByStop[a.RouteStopID] = a
		assignmentsByRoute[a.RouteID] = append(assignmentsByRoute[a.RouteID], a)
		assignedJobs[a.JobID] = struct{}{}
	}

	buildRoute := func(r *domain.Route) (RouteDay, int) {
		rs := stopsByRoute[r.ID]
		slices.SortFunc(rs, func(a, b *domain.RouteStop) int { return a.OrderIndex - b.OrderIndex })

		out := RouteDay{Route: *r, Stops: make([]BoardStop, 0, len(rs))}
		minutes := 0
		for _, s := range rs {
			bs := BoardStop{Stop: *s, Assignment: assignmentByStop[s.ID]}
			if c, ok := clientByID[s.ClientID]; ok {
				bs.ClientName = c.Name
				bs.ClientAddress = c.Address
			}
			out.Stops = append(out.Stops, bs)
			minutes += s.EstimatedMinutes
		}
		return out, minutes
	}

	board := &DailyBoard{
		Date:             date,
		DayOfWeek:        day,
		Technicians:      make([]TechnicianDay, 0, len(technicians)),
		UnassignedRoutes: []RouteDay{},
		UnassignedJobs:   []UnassignedJob{},
	}

	routesByTech := make(map[string][]*domain.Route)
	for _, r := range routes {
		if r.TechnicianID == nil {
			rd, _ := buildRoute(r)
			board.UnassignedRoutes = append(board.UnassignedRoutes, rd)
			continue
		}
		routesByTech[*r.TechnicianID] = append(routesByTech[*r.TechnicianID], r)
	}

	for _, t := range technicians {
		td := TechnicianDay{Technician: *t, Routes: []RouteDay{}}

		minutes := 0
		var statuses []domain.AssignmentStatus
		for _, r := range routesByTech[t.ID] {
			rd, m := buildRoute(r)
			td.Routes = append(td.Routes, rd)
			td.TotalStops += len(rd.Stops)
			minutes += m

			for _, a := range assignmentsByRoute[r.ID] {
				statuses = append(statuses, a.Status)
			}
		}

		td.EstimatedHours = minutesToHours(minutes)
		td.Status = domain.DeriveTechnicianStatus(len(td.Routes) > 0, statuses)
		board.Technicians = append(board.Technicians, td)
	}

	for _, j := range jobs {
		if _, ok := assignedJobs[j.ID]; ok {
			continue
		}
		if j.Status == domain.JobCancelled {
			continue
		}

		uj := UnassignedJob{Job: *j}
		if c, ok := clientByID[j.ClientID]; ok {
			uj.ClientName = c.Name
			uj.ClientAddress = c.Address
		}
		board.UnassignedJobs = append(board.UnassignedJobs, uj)
	}

	return board, nil
}

func wrapRead(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("read %s: %w", what, err)
}
