package domain

// Leg is the travel between two consecutive points as reported by a
// directions provider.
type Leg struct {
	DurationSeconds int
	DurationText    string
	DistanceMeters  int
	DistanceText    string
}

// DrivingTime is a leg attributed to the pair of stops it connects.
// FromIndex and ToIndex are positions in the route's visiting order.
type DrivingTime struct {
	FromStopID string
	ToStopID   string
	FromIndex  int
	ToIndex    int
	Leg
}
