package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore is a Redis read-through cache in front of another Store.
// Missing rows are cached too so that repeated lookups for days without a
// special date do not reach the database.
type CachedStore struct {
	next Store
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger
}

func NewCachedStore(next Store, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedStore{next: next, rdb: rdb, ttl: ttl, log: log}
}

// cacheEntry wraps the value so that a null value marks a known-missing row.
type cacheEntry[T any] struct {
	Value *T `json:"value"`
}

func (c *CachedStore) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	key := fmt.Sprintf("schedule:doctor:%s", id)
	return readThrough(ctx, c, key, ErrDoctorNotFound, func() (*Doctor, error) {
		return c.next.GetDoctor(ctx, id)
	})
}

func (c *CachedStore) GetWeeklySchedule(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*WeeklySchedule, error) {
	key := fmt.Sprintf("schedule:weekly:%s:%d", doctorID, int(day))
	return readThrough(ctx, c, key, ErrWeeklyScheduleNotFound, func() (*WeeklySchedule, error) {
		return c.next.GetWeeklySchedule(ctx, doctorID, day)
	})
}

func (c *CachedStore) GetSpecialDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*SpecialDate, error) {
	key := fmt.Sprintf("schedule:special:%s:%s", doctorID, FormatDate(DateOf(date)))
	return readThrough(ctx, c, key, ErrSpecialDateNotFound, func() (*SpecialDate, error) {
		return c.next.GetSpecialDate(ctx, doctorID, date)
	})
}

// Invalidate drops every cached row of a doctor. Admin tooling calls it after
// editing schedules.
func (c *CachedStore) Invalidate(ctx context.Context, doctorID uuid.UUID) error {
	keys := []string{fmt.Sprintf("schedule:doctor:%s", doctorID)}
	for d := time.Sunday; d <= time.Saturday; d++ {
		keys = append(keys, fmt.Sprintf("schedule:weekly:%s:%d", doctorID, int(d)))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate schedule cache: %w", err)
	}

	iter := c.rdb.Scan(ctx, 0, fmt.Sprintf("schedule:special:%s:*", doctorID), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("invalidate special date cache: %w", err)
		}
	}
	return iter.Err()
}

func readThrough[T any](ctx context.Context, c *CachedStore, key string, notFound error, load func() (*T, error)) (*T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cacheEntry[T]
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			if entry.Value == nil {
				return nil, notFound
			}
			return entry.Value, nil
		}
		c.log.Warn("discarding undecodable schedule cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("schedule cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, err := load()
	if err != nil && !errors.Is(err, notFound) {
		return nil, err
	}

	data, jsonErr := json.Marshal(cacheEntry[T]{Value: value})
	if jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.log.Warn("schedule cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	if value == nil {
		return nil, notFound
	}
	return value, nil
}
