package handlers

import (
	"context"
	"net/http"
	"pool-dispatch-service/internal/api/dto"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/services"
	"strings"
	"time"
)

// DispatchService is the slice of services.Dispatcher the HTTP layer drives.
type DispatchService interface {
	DailyBoard(ctx context.Context, orgID string, date time.Time) (*services.DailyBoard, error)
	WeeklyWorkload(ctx context.Context, orgID string, weekStart time.Time) (*services.WeeklyWorkload, error)
	ReassignRoute(ctx context.Context, orgID string, req services.ReassignRouteRequest) (*domain.Route, error)
	InsertEmergencyStop(ctx context.Context, orgID string, req services.InsertStopRequest) (*domain.RouteStop, error)
	ReorderStop(ctx context.Context, orgID, routeID, stopID string, dir services.Direction) ([]*domain.RouteStop, error)
	MoveStop(ctx context.Context, orgID string, req services.MoveStopRequest) (*domain.RouteStop, error)
	BulkAssignClient(ctx context.Context, orgID, clientID, routeID string) (*services.AssignResult, error)
	AssignJob(ctx context.Context, orgID, jobID, routeID string) (*services.AssignResult, error)
	OptimizeRoute(ctx context.Context, orgID, routeID string) (*services.OptimizeResult, error)
	RouteDrivingTimes(ctx context.Context, orgID, routeID string) (*services.DrivingTimesResult, error)
}

type DispatchHandler struct {
	Service DispatchService
}

// dateParam parses a YYYY-MM-DD query parameter, defaulting to today in UTC.
func (h *DispatchHandler) dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return domain.DateOf(time.Now().UTC()), true
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func (h *DispatchHandler) Board(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}

	board, err := h.Service.DailyBoard(r.Context(), org, date)
	if err != nil {
		writeServiceError(w, r, "daily board", err)
		return
	}

	writeJSON(w, r, http.StatusOK, boardResponse(board))
}

func (h *DispatchHandler) Workload(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}
	weekStart, ok := h.dateParam(w, r, "week_start")
	if !ok {
		return
	}

	wl, err := h.Service.WeeklyWorkload(r.Context(), org, weekStart)
	if err != nil {
		writeServiceError(w, r, "weekly workload", err)
		return
	}

	writeJSON(w, r, http.StatusOK, workloadResponse(wl))
}

func (h *DispatchHandler) ReassignRoute(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req dto.ReassignRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	route, err := h.Service.ReassignRoute(r.Context(), org, services.ReassignRouteRequest{
		RouteID:             r.PathValue("routeID"),
		CurrentTechnicianID: req.CurrentTechnicianID,
		NewTechnicianID:     req.NewTechnicianID,
	})
	if err != nil {
		writeServiceError(w, r, "reassign route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, routeResponse(route))
}

func (h *DispatchHandler) InsertEmergencyStop(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req dto.EmergencyStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, r, http.StatusBadRequest, "client_id is required")
		return
	}

	stop, err := h.Service.InsertEmergencyStop(r.Context(), org, services.InsertStopRequest{
		RouteID:          r.PathValue("routeID"),
		ClientID:         req.ClientID,
		Notes:            req.Notes,
		Position:         req.Position,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		writeServiceError(w, r, "insert emergency stop", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, stopResponse(stop))
}

func (h *DispatchHandler) ReorderStop(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req dto.ReorderStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	routeID := r.PathValue("routeID")
	dir := services.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	stops, err := h.Service.ReorderStop(r.Context(), org, routeID, r.PathValue("stopID"), dir)
	if err != nil {
		writeServiceError(w, r, "reorder stop", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.StopsResponse{RouteID: routeID, Stops: stopsResponse(stops)})
}

func (h *DispatchHandler) MoveStop(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req dto.MoveStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ToRouteID) == "" {
		writeError(w, r, http.StatusBadRequest, "to_route_id is required")
		return
	}

	stop, err := h.Service.MoveStop(r.Context(), org, services.MoveStopRequest{
		StopID:      r.PathValue("stopID"),
		FromRouteID: req.FromRouteID,
		ToRouteID:   req.ToRouteID,
	})
	if err != nil {
		writeServiceError(w, r, "move stop", err)
		return
	}

	writeJSON(w, r, http.StatusOK, stopResponse(stop))
}

func (h *DispatchHandler) AssignClient(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req dto.AssignClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, r, http.StatusBadRequest, "client_id is required")
		return
	}

	res, err := h.Service.BulkAssignClient(r.Context(), org, req.ClientID, r.PathValue("routeID"))
	if err != nil {
		writeServiceError(w, r, "assign client", err)
		return
	}

	writeJSON(w, r, http.StatusOK, assignResponse(res))
}

func (h *DispatchHandler) AssignJob(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req dto.AssignJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.JobID) == "" {
		writeError(w, r, http.StatusBadRequest, "job_id is required")
		return
	}

	res, err := h.Service.AssignJob(r.Context(), org, req.JobID, r.PathValue("routeID"))
	if err != nil {
		writeServiceError(w, r, "assign job", err)
		return
	}

	writeJSON(w, r, http.StatusOK, assignResponse(res))
}

func (h *DispatchHandler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	routeID := r.PathValue("routeID")
	res, err := h.Service.OptimizeRoute(r.Context(), org, routeID)
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	out := dto.OptimizeResponse{
		RouteID:              routeID,
		Method:               string(res.Method),
		Degraded:             res.Degraded,
		NoOptimizationNeeded: res.NoOptimizationNeeded,
		Stops:                stopsResponse(res.Stops),
		DrivingTimes:         drivingTimesResponse(res.DrivingTimes),
	}
	for _, c := range res.Path {
		out.Path = append(out.Path, dto.CoordinatesResponse{Lat: c.Lat, Lon: c.Lon})
	}

	writeJSON(w, r, http.StatusOK, out)
}

func (h *DispatchHandler) DrivingTimes(w http.ResponseWriter, r *http.Request) {
	org, ok := organizationID(w, r)
	if !ok {
		return
	}

	routeID := r.PathValue("routeID")
	res, err := h.Service.RouteDrivingTimes(r.Context(), org, routeID)
	if err != nil {
		writeServiceError(w, r, "driving times", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.DrivingTimesResponse{
		RouteID:      routeID,
		Degraded:     res.Degraded,
		DrivingTimes: drivingTimesResponse(res.DrivingTimes),
	})
}
