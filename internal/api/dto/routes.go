package dto

type ReassignRouteRequest struct {
	// CurrentTechnicianID is the technician the caller saw on the route;
	// null when the route looked unassigned.
	CurrentTechnicianID *string `json:"current_technician_id"`
	NewTechnicianID     string  `json:"new_technician_id"`
}

type EmergencyStopRequest struct {
	ClientID         string  `json:"client_id"`
	Notes            *string `json:"notes"`
	Position         *int    `json:"position"`
	EstimatedMinutes int     `json:"estimated_minutes"`
}

type ReorderStopRequest struct {
	Direction string `json:"direction"`
}

type MoveStopRequest struct {
	FromRouteID string `json:"from_route_id"`
	ToRouteID   string `json:"to_route_id"`
}

type AssignClientRequest struct {
	ClientID string `json:"client_id"`
}

type AssignJobRequest struct {
	JobID string `json:"job_id"`
}

type StopsResponse struct {
	RouteID string         `json:"route_id"`
	Stops   []StopResponse `json:"stops"`
}

type AssignResponse struct {
	Stops         []StopResponse       `json:"stops"`
	Assignments   []AssignmentResponse `json:"assignments"`
	SkippedJobIDs []string             `json:"skipped_job_ids"`
}

type DrivingTimeResponse struct {
	FromStopID      string `json:"from_stop_id"`
	ToStopID        string `json:"to_stop_id"`
	FromIndex       int    `json:"from_index"`
	ToIndex         int    `json:"to_index"`
	DurationSeconds int    `json:"duration_seconds"`
	DurationText    string `json:"duration_text"`
	DistanceMeters  int    `json:"distance_meters"`
	DistanceText    string `json:"distance_text"`
}

type OptimizeResponse struct {
	RouteID              string                `json:"route_id"`
	Method               string                `json:"method"`
	Degraded             bool                  `json:"degraded"`
	NoOptimizationNeeded bool                  `json:"no_optimization_needed"`
	Stops                []StopResponse        `json:"stops"`
	DrivingTimes         []DrivingTimeResponse `json:"driving_times"`
	Path                 []CoordinatesResponse `json:"path,omitempty"`
}

type DrivingTimesResponse struct {
	RouteID      string                `json:"route_id"`
	Degraded     bool                  `json:"degraded"`
	DrivingTimes []DrivingTimeResponse `json:"driving_times"`
}
