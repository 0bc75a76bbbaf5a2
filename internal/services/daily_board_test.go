package services

import (
	"context"
	"errors"
	"pool-dispatch-service/internal/adapters/repositories"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/ports"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyBoard(t *testing.T) {
	f := newFixture(t, nil)

	board, err := f.d.DailyBoard(context.Background(), org, monday.Add(15*time.Hour))
	require.NoError(t, err)

	assert.True(t, board.Date.Equal(monday))
	assert.Equal(t, domain.Monday, board.DayOfWeek)
	require.Len(t, board.Technicians, 2)

	alice := board.Technicians[0]
	assert.Equal(t, "Alice", alice.Technician.Name)
	assert.Equal(t, 3, alice.TotalStops)
	assert.Equal(t, 1.5, alice.EstimatedHours)
	assert.Equal(t, domain.StatusAvailable, alice.Status)
	require.Len(t, alice.Routes, 1)

	stops := alice.Routes[0].Stops
	require.Len(t, stops, 3)
	assert.Equal(t, "s1", stops[0].Stop.ID)
	assert.Equal(t, "Smith", stops[0].ClientName)
	assert.Equal(t, "1 Main St", stops[0].ClientAddress)
	assert.Nil(t, stops[0].Assignment)

	bob := board.Technicians[1]
	assert.Equal(t, "Bob", bob.Technician.Name)
	assert.Equal(t, domain.StatusOff, bob.Status)
	assert.Zero(t, bob.TotalStops)
	assert.Zero(t, bob.EstimatedHours)
	assert.Empty(t, bob.Routes)

	require.Len(t, board.UnassignedRoutes, 1)
	assert.Equal(t, "r-mon-open", board.UnassignedRoutes[0].Route.ID)

	// j2 is next week and j5 is cancelled.
	var jobIDs []string
	for _, j := range board.UnassignedJobs {
		jobIDs = append(jobIDs, j.Job.ID)
	}
	assert.Equal(t, []string{"j1", "j3", "j4"}, jobIDs)
	assert.Equal(t, "Jones", board.UnassignedJobs[2].ClientName)
}

func TestDailyBoardAssignmentsDriveStatus(t *testing.T) {
	assign := func(statuses ...domain.AssignmentStatus) func(*repositories.SeedData) {
		return func(data *repositories.SeedData) {
			jobs := []string{"j1", "j4", "j3"}
			stops := []string{"s1", "s2", "s3"}
			for i, st := range statuses {
				data.Assignments = append(data.Assignments, domain.MaintenanceAssignment{
					ID: "a-" + stops[i], OrganizationID: org, JobID: jobs[i], RouteID: "r-mon",
					RouteStopID: stops[i], Date: monday, Status: st,
				})
			}
		}
	}

	tests := []struct {
		name     string
		statuses []domain.AssignmentStatus
		want     domain.TechnicianStatus
	}{
		{"nothing booked", nil, domain.StatusAvailable},
		{"all scheduled", []domain.AssignmentStatus{domain.AssignmentScheduled, domain.AssignmentScheduled}, domain.StatusAvailable},
		{"one in progress", []domain.AssignmentStatus{domain.AssignmentCompleted, domain.AssignmentInProgress}, domain.StatusOnRoute},
		{"between stops", []domain.AssignmentStatus{domain.AssignmentCompleted, domain.AssignmentScheduled}, domain.StatusOnRoute},
		{"all completed", []domain.AssignmentStatus{domain.AssignmentCompleted, domain.AssignmentCompleted, domain.AssignmentCompleted}, domain.StatusCompleted},
		{"completed and skipped", []domain.AssignmentStatus{domain.AssignmentCompleted, domain.AssignmentSkipped, domain.AssignmentCompleted}, domain.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, assign(tt.statuses...))

			board, err := f.d.DailyBoard(context.Background(), org, monday)
			require.NoError(t, err)
			assert.Equal(t, tt.want, board.Technicians[0].Status)

			if len(tt.statuses) > 0 {
				first := board.Technicians[0].Routes[0].Stops[0]
				require.NotNil(t, first.Assignment)
				assert.Equal(t, tt.statuses[0], first.Assignment.Status)
			}
		})
	}
}

func TestDailyBoardOmitsCancelledJobs(t *testing.T) {
	f := newFixture(t, nil, func(data *repositories.SeedData) {
		for i := range data.Jobs {
			if data.Jobs[i].ID == "j1" {
				data.Jobs[i].Status = domain.JobCancelled
			}
		}
	})

	board, err := f.d.DailyBoard(context.Background(), org, monday)
	require.NoError(t, err)

	for _, j := range board.UnassignedJobs {
		assert.NotEqual(t, domain.JobCancelled, j.Job.Status, "job %s", j.Job.ID)
	}
	require.Len(t, board.UnassignedJobs, 2)
	assert.Equal(t, "j3", board.UnassignedJobs[0].Job.ID)
}

func TestDailyBoardExcludesAssignedJobs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.d.AssignJob(ctx, org, "j4", "r-mon")
	require.NoError(t, err)

	board, err := f.d.DailyBoard(ctx, org, monday)
	require.NoError(t, err)

	for _, j := range board.UnassignedJobs {
		assert.NotEqual(t, "j4", j.Job.ID)
	}
	assert.Equal(t, 4, board.Technicians[0].TotalStops)
	assert.Equal(t, 1.83, board.Technicians[0].EstimatedHours)
}

func TestDailyBoardIsolatesOrganizations(t *testing.T) {
	f := newFixture(t, nil)

	board, err := f.d.DailyBoard(context.Background(), "org-2", monday)
	require.NoError(t, err)

	require.Len(t, board.Technicians, 1)
	assert.Equal(t, "Zed", board.Technicians[0].Technician.Name)
	assert.Equal(t, 1, board.Technicians[0].TotalStops)
	assert.Equal(t, "", board.Technicians[0].Routes[0].Stops[0].ClientAddress)
	assert.Empty(t, board.UnassignedRoutes)
	require.Len(t, board.UnassignedJobs, 1)
	assert.Equal(t, "j-other", board.UnassignedJobs[0].Job.ID)
}

// failingRepo fails one read so aggregation can be checked for partial
// results.
type failingRepo struct {
	ports.DispatchRepository
}

func (failingRepo) ListAssignmentsByDate(context.Context, string, time.Time) ([]*domain.MaintenanceAssignment, error) {
	return nil, errors.New("connection reset")
}

func TestDailyBoardAbortsOnReadFailure(t *testing.T) {
	f := newFixture(t, nil)
	d := NewDispatcher(failingRepo{f.repo}, nil, nil)

	board, err := d.DailyBoard(context.Background(), org, monday)
	require.ErrorIs(t, err, domain.ErrInternal)
	assert.Nil(t, board)
	assert.Contains(t, err.Error(), "connection reset")
}
