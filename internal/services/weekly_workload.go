package services

import (
	"context"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"time"
)

// WeeklyWorkload is the template capacity of every technician over seven
// consecutive days. It counts stops on routes by day of week and does not
// look at dated assignments.
type WeeklyWorkload struct {
	WeekStart   time.Time
	Technicians []TechnicianWeek
}

type TechnicianWeek struct {
	Technician     domain.Technician
	Days           []DayWorkload
	TotalStops     int
	EstimatedHours float64
}

type DayWorkload struct {
	Date           time.Time
	DayOfWeek      domain.DayOfWeek
	Stops          int
	EstimatedHours float64
}

// WeeklyWorkload counts, per technician and for each of the seven days
// starting at weekStart, the stops on that technician's routes for the day.
func (d *Dispatcher) WeeklyWorkload(ctx context.Context, orgID string, weekStart time.Time) (*WeeklyWorkload, error) {
	weekStart = domain.DateOf(weekStart)

	technicians, err := d.repo.ListTechnicians(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("weekly workload: %w: %w", domain.ErrInternal, wrapRead("technicians", err))
	}
	routes, err := d.repo.ListRoutes(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("weekly workload: %w: %w", domain.ErrInternal, wrapRead("routes", err))
	}

	ids := make([]string, 0, len(routes))
	for _, r := range routes {
		ids = append(ids, r.ID)
	}
	stops, err := d.repo.ListStopsForRoutes(ctx, orgID, ids)
	if err != nil {
		return nil, fmt.Errorf("weekly workload: %w: %w", domain.ErrInternal, wrapRead("stops", err))
	}

	type load struct{ stops, minutes int }
	perRoute := make(map[string]load, len(routes))
	for _, s := range stops {
		l := perRoute[s.RouteID]
		l.stops++
		l.minutes += s.EstimatedMinutes
		perRoute[s.RouteID] = l
	}

	// technician -> day -> load
	perTech := make(map[string]map[domain.DayOfWeek]load)
	for _, r := range routes {
		if r.TechnicianID == nil {
			continue
		}
		days, ok := perTech[*r.TechnicianID]
		if !ok {
			days = make(map[domain.DayOfWeek]load)
			perTech[*r.TechnicianID] = days
		}
		l := days[r.DayOfWeek]
		l.stops += perRoute[r.ID].stops
		l.minutes += perRoute[r.ID].minutes
		days[r.DayOfWeek] = l
	}

	out := &WeeklyWorkload{
		WeekStart:   weekStart,
		Technicians: make([]TechnicianWeek, 0, len(technicians)),
	}
	for _, t := range technicians {
		tw := TechnicianWeek{Technician: *t, Days: make([]DayWorkload, 0, 7)}

		totalMinutes := 0
		for i := 0; i < 7; i++ {
			date := weekStart.AddDate(0, 0, i)
			day := domain.DayOfWeekOf(date)
			l := perTech[t.ID][day]

			tw.Days = append(tw.Days, DayWorkload{
				Date:           date,
				DayOfWeek:      day,
				Stops:          l.stops,
				EstimatedHours: minutesToHours(l.minutes),
			})
			tw.TotalStops += l.stops
			totalMinutes += l.minutes
		}
		tw.EstimatedHours = minutesToHours(totalMinutes)

		out.Technicians = append(out.Technicians, tw)
	}

	return out, nil
}
