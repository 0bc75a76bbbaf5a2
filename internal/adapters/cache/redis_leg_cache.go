package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/obs"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLegPrefix = "dispatch:leg:"

type redisLeg struct {
	DurationSeconds int    `json:"duration_seconds"`
	DurationText    string `json:"duration_text"`
	DistanceMeters  int    `json:"distance_meters"`
	DistanceText    string `json:"distance_text"`
}

// RedisLegCache keeps directions legs in Redis with a per-entry TTL.
type RedisLegCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisLegCache(client *redis.Client, ttl time.Duration) *RedisLegCache {
	return &RedisLegCache{Client: client, TTL: ttl}
}

func (r *RedisLegCache) GetMany(ctx context.Context, keys []string) (_ map[string]domain.Leg, err error) {
	defer obs.Time(ctx, "legs.redis.GetMany")(&err)

	if r.Client == nil {
		return nil, errors.New("leg cache: redis client is nil")
	}

	uniq := uniqueKeys(keys)
	if len(uniq) == 0 {
		return map[string]domain.Leg{}, nil
	}

	redisKeys := make([]string, len(uniq))
	for i, k := range uniq {
		redisKeys[i] = redisLegPrefix + k
	}

	vals, err := r.Client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get leg cache: mget: %w", err)
	}

	out := make(map[string]domain.Leg, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}

		var l redisLeg
		if err := json.Unmarshal([]byte(s), &l); err != nil {
			return nil, fmt.Errorf("get leg cache: decode %q: %w", uniq[i], err)
		}
		out[uniq[i]] = domain.Leg(l)
	}

	return out, nil
}

func (r *RedisLegCache) PutMany(ctx context.Context, legs map[string]domain.Leg) error {
	if r.Client == nil {
		return errors.New("leg cache: redis client is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	pipe := r.Client.Pipeline()
	for key, l := range legs {
		if key == "" {
			return fmt.Errorf("insert leg cache: empty key")
		}

		b, err := json.Marshal(redisLeg(l))
		if err != nil {
			return fmt.Errorf("insert leg cache: encode %q: %w", key, err)
		}
		pipe.Set(ctx, redisLegPrefix+key, b, r.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert leg cache: pipeline: %w", err)
	}

	return nil
}
