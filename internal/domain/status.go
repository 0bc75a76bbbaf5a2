package domain

// TechnicianStatus is a technician's derived state for one day.
// It is recomputed from assignment statuses on every read and never stored.
type TechnicianStatus string

const (
	StatusOff       TechnicianStatus = "off"
	StatusAvailable TechnicianStatus = "available"
	StatusOnRoute   TechnicianStatus = "on_route"
	StatusCompleted TechnicianStatus = "completed"
)

// DeriveTechnicianStatus computes the day status from whether the technician
// has routes that day and the statuses of the day's assignments on them.
//
// Completed and skipped assignments both count as finished. Some finished
// work with none in progress still counts as on_route: the technician is
// between stops.
func DeriveTechnicianStatus(hasRoutes bool, statuses []AssignmentStatus) TechnicianStatus {
	if !hasRoutes {
		return StatusOff
	}
	if len(statuses) == 0 {
		return StatusAvailable
	}

	finished := 0
	for _, s := range statuses {
		switch s {
		case AssignmentInProgress:
			return StatusOnRoute
		case AssignmentCompleted, AssignmentSkipped:
			finished++
		}
	}

	switch {
	case finished == len(statuses):
		return StatusCompleted
	case finished > 0:
		return StatusOnRoute
	default:
		return StatusAvailable
	}
}
