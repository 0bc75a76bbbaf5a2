package ports

import (
	"context"
	"pool-dispatch-service/internal/domain"
)

// LegCache stores provider legs keyed by an origin|destination pair.
// Keys are built by the caller and expected to be normalized.
type LegCache interface {
	GetMany(ctx context.Context, keys []string) (map[string]domain.Leg, error)
	PutMany(ctx context.Context, legs map[string]domain.Leg) error
}
