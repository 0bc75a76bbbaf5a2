package services

import (
	"context"
	"errors"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"pool-dispatch-service/internal/ports"
	"slices"

	"github.com/google/uuid"
)

// DefaultStopMinutes is the service duration of a stop when neither the
// caller nor the job provides one.
const DefaultStopMinutes = 30

// Dispatcher implements route mutations, optimization and the daily and
// weekly aggregations for one repository.
//
// directions may be nil, in which case ordering always uses the
// nearest-neighbor heuristic and no driving times are reported.
type Dispatcher struct {
	repo       ports.DispatchRepository
	directions ports.DirectionsProvider
	metrics    *obs.Metrics
	newID      func() string
}

func NewDispatcher(repo ports.DispatchRepository, directions ports.DirectionsProvider, metrics *obs.Metrics) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		directions: directions,
		metrics:    metrics,
		newID:      uuid.NewString,
	}
}

// internalErr tags repository failures so callers can tell them apart from
// validation and lookup errors.
func internalErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrInternal, err)
}

// applyOrder writes contiguous positions 0..N-1 for ordered on routeID,
// touching only stops whose route or index changes.
func applyOrder(
	ctx context.Context,
	repo ports.DispatchRepository,
	orgID string,
	routeID string,
	ordered []*domain.RouteStop,
) error {
	for i, s := range ordered {
		if s.OrderIndex == i && s.RouteID == routeID {
			continue
		}
		if err := repo.UpdateStopPlacement(ctx, orgID, s.ID, routeID, i); err != nil {
			return fmt.Errorf("place stop %s at %d: %w", s.ID, i, err)
		}
		s.OrderIndex = i
		s.RouteID = routeID
	}
	return nil
}

// lockRoutes locks routes in a fixed order so concurrent multi-route
// mutations cannot deadlock each other.
func lockRoutes(ctx context.Context, repo ports.DispatchRepository, orgID string, routeIDs ...string) (map[string]*domain.Route, error) {
	ids := slices.Clone(routeIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make(map[string]*domain.Route, len(ids))
	for _, id := range ids {
		r, err := repo.LockRoute(ctx, orgID, id)
		if err != nil {
			return nil, fmt.Errorf("lock route %s: %w", id, err)
		}
		out[id] = r
	}
	return out, nil
}

// newStop builds an unsaved stop for client, caching its coordinates.
func (d *Dispatcher) newStop(routeID string, client *domain.Client, minutes int, instructions *string) *domain.RouteStop {
	if minutes <= 0 {
		minutes = DefaultStopMinutes
	}

	stop := &domain.RouteStop{
		ID:                 d.newID(),
		RouteID:            routeID,
		ClientID:           client.ID,
		EstimatedMinutes:   minutes,
		CustomInstructions: instructions,
	}
	if client.Coordinates != nil {
		c := *client.Coordinates
		stop.Coordinates = &c
	}
	return stop
}
