package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"strings"
	"time"
)

// SQLLegCache is a Postgres-backed cache of directions legs keyed by
// "origin|destination" coordinate pairs.
type SQLLegCache struct {
	DB  *sql.DB
	TTL time.Duration
}

func NewSQLLegCache(db *sql.DB, ttl time.Duration) *SQLLegCache {
	return &SQLLegCache{DB: db, TTL: ttl}
}

// Fetch cached legs for many keys. Entries older than TTL are ignored.
func (s *SQLLegCache) GetMany(ctx context.Context, keys []string) (_ map[string]domain.Leg, err error) {
	defer obs.Time(ctx, "legs.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}

	uniq := uniqueKeys(keys)
	if len(uniq) == 0 {
		return map[string]domain.Leg{}, nil
	}

	q := `
	SELECT cache_key, duration_seconds, duration_text, distance_meters, distance_text
	FROM directions_leg_cache
	WHERE cache_key = ANY($1::text[])
		AND ($2::bigint <= 0 OR updated_at > now() - make_interval(secs => $2::bigint));
	`

	rows, err := s.DB.QueryContext(ctx, q, uniq, int64(s.TTL/time.Second))
	if err != nil {
		return nil, fmt.Errorf("get leg cache: query directions_leg_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Leg, len(uniq))
	for rows.Next() {
		var key string
		var l domain.Leg
		if err := rows.Scan(&key, &l.DurationSeconds, &l.DurationText, &l.DistanceMeters, &l.DistanceText); err != nil {
			return nil, fmt.Errorf("get leg cache: scan rows: %w", err)
		}
		out[key] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get leg cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many legs, refreshing the timestamp of existing entries.
func (s *SQLLegCache) PutMany(ctx context.Context, legs map[string]domain.Leg) error {
	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert leg cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO directions_leg_cache (cache_key, duration_seconds, duration_text, distance_meters, distance_text, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (cache_key) DO UPDATE
	SET duration_seconds = EXCLUDED.duration_seconds,
		duration_text = EXCLUDED.duration_text,
		distance_meters = EXCLUDED.distance_meters,
		distance_text = EXCLUDED.distance_text,
		updated_at = EXCLUDED.updated_at;
	`)
	if err != nil {
		return fmt.Errorf("insert leg cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for key, l := range legs {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("insert leg cache: empty key")
		}

		if _, err := stmt.ExecContext(ctx, key, l.DurationSeconds, l.DurationText, l.DistanceMeters, l.DistanceText); err != nil {
			return fmt.Errorf("insert leg cache key=%q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert leg cache commit: %w", err)
	}

	return nil
}

func uniqueKeys(keys []string) []string {
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	return uniq
}
