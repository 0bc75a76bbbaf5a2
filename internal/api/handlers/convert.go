package handlers

import (
	"pool-dispatch-service/internal/api/dto"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/services"
)

func coordinatesResponse(c *domain.Coordinates) *dto.CoordinatesResponse {
	if c == nil {
		return nil
	}
	return &dto.CoordinatesResponse{Lat: c.Lat, Lon: c.Lon}
}

func assignmentResponse(a *domain.MaintenanceAssignment) *dto.AssignmentResponse {
	if a == nil {
		return nil
	}
	return &dto.AssignmentResponse{
		AssignmentID: a.ID,
		JobID:        a.JobID,
		RouteID:      a.RouteID,
		RouteStopID:  a.RouteStopID,
		Date:         a.Date.Format(domain.DateLayout),
		Status:       string(a.Status),
	}
}

func stopResponse(s *domain.RouteStop) dto.StopResponse {
	return dto.StopResponse{
		StopID:             s.ID,
		RouteID:            s.RouteID,
		ClientID:           s.ClientID,
		OrderIndex:         s.OrderIndex,
		EstimatedMinutes:   s.EstimatedMinutes,
		CustomInstructions: s.CustomInstructions,
		Coordinates:        coordinatesResponse(s.Coordinates),
	}
}

func stopsResponse(stops []*domain.RouteStop) []dto.StopResponse {
	out := make([]dto.StopResponse, 0, len(stops))
	for _, s := range stops {
		out = append(out, stopResponse(s))
	}
	return out
}

func routeResponse(r *domain.Route) dto.RouteResponse {
	return dto.RouteResponse{
		RouteID:      r.ID,
		Name:         r.Name,
		TechnicianID: r.TechnicianID,
		DayOfWeek:    string(r.DayOfWeek),
	}
}

func routeDayResponse(rd services.RouteDay) dto.RouteResponse {
	res := routeResponse(&rd.Route)
	res.Stops = make([]dto.StopResponse, 0, len(rd.Stops))
	for _, bs := range rd.Stops {
		s := stopResponse(&bs.Stop)
		s.ClientName = bs.ClientName
		s.ClientAddress = bs.ClientAddress
		s.Assignment = assignmentResponse(bs.Assignment)
		res.Stops = append(res.Stops, s)
	}
	return res
}

func boardResponse(b *services.DailyBoard) dto.BoardResponse {
	res := dto.BoardResponse{
		Date:             b.Date.Format(domain.DateLayout),
		DayOfWeek:        string(b.DayOfWeek),
		Technicians:      make([]dto.TechnicianDayResponse, 0, len(b.Technicians)),
		UnassignedRoutes: make([]dto.RouteResponse, 0, len(b.UnassignedRoutes)),
		UnassignedJobs:   make([]dto.UnassignedJobResponse, 0, len(b.UnassignedJobs)),
	}

	for _, td := range b.Technicians {
		routes := make([]dto.RouteResponse, 0, len(td.Routes))
		for _, rd := range td.Routes {
			routes = append(routes, routeDayResponse(rd))
		}
		res.Technicians = append(res.Technicians, dto.TechnicianDayResponse{
			TechnicianID:   td.Technician.ID,
			Name:           td.Technician.Name,
			Status:         string(td.Status),
			TotalStops:     td.TotalStops,
			EstimatedHours: td.EstimatedHours,
			Routes:         routes,
		})
	}
	for _, rd := range b.UnassignedRoutes {
		res.UnassignedRoutes = append(res.UnassignedRoutes, routeDayResponse(rd))
	}
	for _, uj := range b.UnassignedJobs {
		res.UnassignedJobs = append(res.UnassignedJobs, dto.UnassignedJobResponse{
			JobID:            uj.Job.ID,
			ClientID:         uj.Job.ClientID,
			ClientName:       uj.ClientName,
			ClientAddress:    uj.ClientAddress,
			Kind:             string(uj.Job.Kind),
			ScheduledDate:    uj.Job.ScheduledDate.Format(domain.DateLayout),
			Status:           string(uj.Job.Status),
			Notes:            uj.Job.Notes,
			EstimatedMinutes: uj.Job.EstimatedMinutes,
		})
	}

	return res
}

func workloadResponse(w *services.WeeklyWorkload) dto.WorkloadResponse {
	res := dto.WorkloadResponse{
		WeekStart:   w.WeekStart.Format(domain.DateLayout),
		Technicians: make([]dto.TechnicianWeekResponse, 0, len(w.Technicians)),
	}
	for _, tw := range w.Technicians {
		days := make([]dto.DayWorkloadResponse, 0, len(tw.Days))
		for _, d := range tw.Days {
			days = append(days, dto.DayWorkloadResponse{
				Date:           d.Date.Format(domain.DateLayout),
				DayOfWeek:      string(d.DayOfWeek),
				Stops:          d.Stops,
				EstimatedHours: d.EstimatedHours,
			})
		}
		res.Technicians = append(res.Technicians, dto.TechnicianWeekResponse{
			TechnicianID:   tw.Technician.ID,
			Name:           tw.Technician.Name,
			TotalStops:     tw.TotalStops,
			EstimatedHours: tw.EstimatedHours,
			Days:           days,
		})
	}
	return res
}

func drivingTimesResponse(dts []domain.DrivingTime) []dto.DrivingTimeResponse {
	out := make([]dto.DrivingTimeResponse, 0, len(dts))
	for _, dt := range dts {
		out = append(out, dto.DrivingTimeResponse{
			FromStopID:      dt.FromStopID,
			ToStopID:        dt.ToStopID,
			FromIndex:       dt.FromIndex,
			ToIndex:         dt.ToIndex,
			DurationSeconds: dt.DurationSeconds,
			DurationText:    dt.DurationText,
			DistanceMeters:  dt.DistanceMeters,
			DistanceText:    dt.DistanceText,
		})
	}
	return out
}

func assignResponse(res *services.AssignResult) dto.AssignResponse {
	out := dto.AssignResponse{
		Stops:         stopsResponse(res.Stops),
		Assignments:   make([]dto.AssignmentResponse, 0, len(res.Assignments)),
		SkippedJobIDs: res.SkippedJobs,
	}
	if out.SkippedJobIDs == nil {
		out.SkippedJobIDs = []string{}
	}
	for _, a := range res.Assignments {
		out.Assignments = append(out.Assignments, *assignmentResponse(a))
	}
	return out
}
