package domain

import (
	"fmt"
	"strings"
	"time"
)

// DayOfWeek names the weekday a route template runs on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

var weekdays = map[time.Weekday]DayOfWeek{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// DayOfWeekOf resolves the named day for a calendar date.
func DayOfWeekOf(t time.Time) DayOfWeek {
	return weekdays[t.Weekday()]
}

func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range weekdays {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("parse day of week %q: %w", s, ErrInvalidRequest)
}

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidRequest)
	}
	return t, nil
}

// Route is a technician's ordered sequence of stops for one day of the week.
// TechnicianID is nil while the route is unstaffed.
type Route struct {
	ID             string
	OrganizationID string
	Name           string
	TechnicianID   *string
	DayOfWeek      DayOfWeek
}

// HasTechnician reports whether the route is staffed by the given technician.
func (r *Route) HasTechnician(technicianID string) bool {
	return r.TechnicianID != nil && *r.TechnicianID == technicianID
}

// RouteStop is one client visit within a route.
//
// OrderIndex values of a route's stops form 0..N-1 once any mutation
// completes. Coordinates caches the client's location when known.
type RouteStop struct {
	ID                 string
	RouteID            string
	ClientID           string
	OrderIndex         int
	EstimatedMinutes   int
	CustomInstructions *string
	Coordinates        *Coordinates
}
