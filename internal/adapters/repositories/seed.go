package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"pool-dispatch-service/internal/domain"
	"strings"
)

// SeedData is the reference data of one or more organizations.
type SeedData struct {
	Technicians []domain.Technician
	Clients     []domain.Client
	Routes      []domain.Route
	Stops       []domain.RouteStop
	Jobs        []domain.Job
	Assignments []domain.MaintenanceAssignment
}

type coordinatesSeed struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (c *coordinatesSeed) toDomain() *domain.Coordinates {
	if c == nil {
		return nil
	}
	return &domain.Coordinates{Lon: c.Lon, Lat: c.Lat}
}

type seedFile struct {
	OrganizationID string `json:"organization_id"`
	Technicians    []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"technicians"`
	Clients []struct {
		ID          string           `json:"id"`
		Name        string           `json:"name"`
		Address     string           `json:"address"`
		Coordinates *coordinatesSeed `json:"coordinates"`
	} `json:"clients"`
	Routes []struct {
		ID           string  `json:"id"`
		Name         string  `json:"name"`
		TechnicianID *string `json:"technician_id"`
		DayOfWeek    string  `json:"day_of_week"`
		Stops        []struct {
			ID                 string  `json:"id"`
			ClientID           string  `json:"client_id"`
			EstimatedMinutes   int     `json:"estimated_minutes"`
			CustomInstructions *string `json:"custom_instructions"`
		} `json:"stops"`
	} `json:"routes"`
	Jobs []struct {
		ID               string  `json:"id"`
		ClientID         string  `json:"client_id"`
		Kind             string  `json:"kind"`
		ScheduledDate    string  `json:"scheduled_date"`
		Status           string  `json:"status"`
		Notes            *string `json:"notes"`
		EstimatedMinutes int     `json:"estimated_minutes"`
	} `json:"jobs"`
}

// LoadSeedFile reads a JSON seed file. Stops are listed under their route in
// visiting order; their positions and coordinate cache are derived on load.
func LoadSeedFile(jsonPath string) (SeedData, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return SeedData{}, fmt.Errorf("load seed: read %q: %w", jsonPath, err)
	}
	return ParseSeed(bytes)
}

func ParseSeed(bytes []byte) (SeedData, error) {
	var file seedFile
	if err := json.Unmarshal(bytes, &file); err != nil {
		return SeedData{}, fmt.Errorf("load seed: parse json: %w", err)
	}

	org := strings.TrimSpace(file.OrganizationID)
	if org == "" {
		return SeedData{}, fmt.Errorf("load seed: organization_id cannot be empty")
	}

	var out SeedData
	for i, t := range file.Technicians {
		if strings.TrimSpace(t.ID) == "" {
			return SeedData{}, fmt.Errorf("load seed: technician at index %d: id cannot be empty", i)
		}
		out.Technicians = append(out.Technicians, domain.Technician{ID: t.ID, OrganizationID: org, Name: t.Name})
	}

	clients := make(map[string]*domain.Coordinates, len(file.Clients))
	for i, c := range file.Clients {
		if strings.TrimSpace(c.ID) == "" {
			return SeedData{}, fmt.Errorf("load seed: client at index %d: id cannot be empty", i)
		}
		out.Clients = append(out.Clients, domain.Client{
			ID:             c.ID,
			OrganizationID: org,
			Name:           c.Name,
			Address:        c.Address,
			Coordinates:    c.Coordinates.toDomain(),
		})
		clients[c.ID] = c.Coordinates.toDomain()
	}

	for i, r := range file.Routes {
		day, err := domain.ParseDayOfWeek(r.DayOfWeek)
		if err != nil {
			return SeedData{}, fmt.Errorf("load seed: route at index %d: %w", i, err)
		}
		out.Routes = append(out.Routes, domain.Route{
			ID:             r.ID,
			OrganizationID: org,
			Name:           r.Name,
			TechnicianID:   r.TechnicianID,
			DayOfWeek:      day,
		})

		for j, s := range r.Stops {
			coords, ok := clients[s.ClientID]
			if !ok {
				return SeedData{}, fmt.Errorf("load seed: route %s stop %d: unknown client %q", r.ID, j, s.ClientID)
			}
			minutes := s.EstimatedMinutes
			if minutes <= 0 {
				minutes = 30
			}
			out.Stops = append(out.Stops, domain.RouteStop{
				ID:                 s.ID,
				RouteID:            r.ID,
				ClientID:           s.ClientID,
				OrderIndex:         j,
				EstimatedMinutes:   minutes,
				CustomInstructions: s.CustomInstructions,
				Coordinates:        coords,
			})
		}
	}

	for i, j := range file.Jobs {
		date, err := domain.ParseDate(j.ScheduledDate)
		if err != nil {
			return SeedData{}, fmt.Errorf("load seed: job at index %d: %w", i, err)
		}
		kind := domain.JobKind(j.Kind)
		if kind == "" {
			kind = domain.JobMaintenance
		}
		status := domain.JobStatus(j.Status)
		if status == "" {
			status = domain.JobPending
		}
		out.Jobs = append(out.Jobs, domain.Job{
			ID:               j.ID,
			OrganizationID:   org,
			ClientID:         j.ClientID,
			Kind:             kind,
			ScheduledDate:    date,
			Status:           status,
			Notes:            j.Notes,
			EstimatedMinutes: j.EstimatedMinutes,
		})
	}

	return out, nil
}
