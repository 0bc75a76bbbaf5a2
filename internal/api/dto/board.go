package dto

type CoordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type AssignmentResponse struct {
	AssignmentID string `json:"assignment_id"`
	JobID        string `json:"job_id"`
	RouteID      string `json:"route_id"`
	RouteStopID  string `json:"route_stop_id"`
	Date         string `json:"date"`
	Status       string `json:"status"`
}

type StopResponse struct {
	StopID             string               `json:"stop_id"`
	RouteID            string               `json:"route_id"`
	ClientID           string               `json:"client_id"`
	ClientName         string               `json:"client_name,omitempty"`
	ClientAddress      string               `json:"client_address,omitempty"`
	OrderIndex         int                  `json:"order_index"`
	EstimatedMinutes   int                  `json:"estimated_minutes"`
	CustomInstructions *string              `json:"custom_instructions"`
	Coordinates        *CoordinatesResponse `json:"coordinates"`
	Assignment         *AssignmentResponse  `json:"assignment,omitempty"`
}

type RouteResponse struct {
	RouteID      string         `json:"route_id"`
	Name         string         `json:"name"`
	TechnicianID *string        `json:"technician_id"`
	DayOfWeek    string         `json:"day_of_week"`
	Stops        []StopResponse `json:"stops,omitempty"`
}

type TechnicianDayResponse struct {
	TechnicianID   string          `json:"technician_id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	TotalStops     int             `json:"total_stops"`
	EstimatedHours float64         `json:"estimated_hours"`
	Routes         []RouteResponse `json:"routes"`
}

type UnassignedJobResponse struct {
	JobID            string  `json:"job_id"`
	ClientID         string  `json:"client_id"`
	ClientName       string  `json:"client_name"`
	ClientAddress    string  `json:"client_address"`
	Kind             string  `json:"kind"`
	ScheduledDate    string  `json:"scheduled_date"`
	Status           string  `json:"status"`
	Notes            *string `json:"notes"`
	EstimatedMinutes int     `json:"estimated_minutes"`
}

type BoardResponse struct {
	Date             string                  `json:"date"`
	DayOfWeek        string                  `json:"day_of_week"`
	Technicians      []TechnicianDayResponse `json:"technicians"`
	UnassignedRoutes []RouteResponse         `json:"unassigned_routes"`
	UnassignedJobs   []UnassignedJobResponse `json:"unassigned_jobs"`
}

type DayWorkloadResponse struct {
	Date           string  `json:"date"`
	DayOfWeek      string  `json:"day_of_week"`
	Stops          int     `json:"stops"`
	EstimatedHours float64 `json:"estimated_hours"`
}

type TechnicianWeekResponse struct {
	TechnicianID   string                `json:"technician_id"`
	Name           string                `json:"name"`
	TotalStops     int                   `json:"total_stops"`
	EstimatedHours float64               `json:"estimated_hours"`
	Days           []DayWorkloadResponse `json:"days"`
}

type WorkloadResponse struct {
	WeekStart   string                   `json:"week_start"`
	Technicians []TechnicianWeekResponse `json:"technicians"`
}
