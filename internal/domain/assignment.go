package domain

import "time"

type AssignmentStatus string

const (
	AssignmentScheduled  AssignmentStatus = "scheduled"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentSkipped    AssignmentStatus = "skipped"
)

// MaintenanceAssignment binds a dated job to a route stop.
// A job has at most one assignment per date.
type MaintenanceAssignment struct {
	ID             string
	OrganizationID string
	JobID          string
	RouteID        string
	RouteStopID    string
	Date           time.Time
	Status         AssignmentStatus
}

type JobKind string

const (
	JobMaintenance JobKind = "maintenance"
	JobWorkOrder   JobKind = "work_order"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobScheduled JobStatus = "scheduled"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a scheduled maintenance visit or work order for a client.
type Job struct {
	ID               string
	OrganizationID   string
	ClientID         string
	Kind             JobKind
	ScheduledDate    time.Time
	Status           JobStatus
	Notes            *string
	EstimatedMinutes int
}
