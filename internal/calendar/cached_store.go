package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	weeklyVersionKey    = "calendar:weekly:version"
	exceptionVersionKey = "calendar:exceptions:version"
	DefaultCacheTTL     = 5 * time.Minute
)

// CachedStore puts a Redis read-through cache in front of another Store.
// Writes go to the backing store first and then invalidate the cache.
// Any Redis failure falls back to the backing store.
type CachedStore struct {
	backing Store
	redis   *redis.Client
	ttl     time.Duration
	logger  *logging.Logger
}

// NewCachedStore wraps backing with a Redis cache. ttl <= 0 uses DefaultCacheTTL.
func NewCachedStore(backing Store, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{backing: backing, redis: client, ttl: ttl, logger: logger}
}

func (s *CachedStore) WeeklyHours(ctx context.Context) (schedule.Week, error) {
	key, ok := s.versionedKey(ctx, weeklyVersionKey, "calendar:weekly")
	var week schedule.Week
	if ok && s.load(ctx, key, &week) {
		return week, nil
	}
	week, err := s.backing.WeeklyHours(ctx)
	if err != nil {
		return schedule.Week{}, err
	}
	if ok {
		s.store(ctx, key, week)
	}
	return week, nil
}

func (s *CachedStore) ExceptionFor(ctx context.Context, date string) (*schedule.Exception, error) {
	key, ok := s.versionedKey(ctx, exceptionVersionKey, "calendar:exceptions:"+date)
	if ok {
		var cached *schedule.Exception
		if s.load(ctx, key, &cached) {
			return cached, nil
		}
	}
	exc, err := s.backing.ExceptionFor(ctx, date)
	if err != nil {
		return nil, err
	}
	if ok {
		s.store(ctx, key, exc)
	}
	return exc, nil
}

func (s *CachedStore) ListExceptions(ctx context.Context, from, to string) ([]schedule.Exception, error) {
	return s.backing.ListExceptions(ctx, from, to)
}

func (s *CachedStore) GetException(ctx context.Context, id string) (*schedule.Exception, error) {
	return s.backing.GetException(ctx, id)
}

func (s *CachedStore) UpsertWeeklyHours(ctx context.Context, hours schedule.WeeklyHours) error {
	if err := s.backing.UpsertWeeklyHours(ctx, hours); err != nil {
		return err
	}
	s.bump(ctx, weeklyVersionKey)
	return nil
}

func (s *CachedStore) CreateException(ctx context.Context, exc *schedule.Exception) error {
	if err := s.backing.CreateException(ctx, exc); err != nil {
		return err
	}
	s.bump(ctx, exceptionVersionKey)
	return nil
}

func (s *CachedStore) UpdateException(ctx context.Context, exc *schedule.Exception) error {
	if err := s.backing.UpdateException(ctx, exc); err != nil {
		return err
	}
	s.bump(ctx, exceptionVersionKey)
	return nil
}

func (s *CachedStore) DeleteException(ctx context.Context, id string) error {
	if err := s.backing.DeleteException(ctx, id); err != nil {
		return err
	}
	s.bump(ctx, exceptionVersionKey)
	return nil
}

// versionedKey prefixes an entry with the current value of its version
// counter. The version is read before the backing load, so an entry
// filled from a stale read lands under a version no reader asks for.
func (s *CachedStore) versionedKey(ctx context.Context, versionKey, name string) (string, bool) {
	version, err := s.redis.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		version, err = 0, nil
	}
	if err != nil {
		s.logger.Warn("calendar cache: version lookup failed", "key", versionKey, "error", err)
		return "", false
	}
	return fmt.Sprintf("%s:v%d", name, version), true
}

func (s *CachedStore) bump(ctx context.Context, versionKey string) {
	if err := s.redis.Incr(ctx, versionKey).Err(); err != nil {
		s.logger.Warn("calendar cache: invalidation failed", "key", versionKey, "error", err)
	}
}

func (s *CachedStore) load(ctx context.Context, key string, dst any) bool {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.logger.Warn("calendar cache: get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("calendar cache: corrupt entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *CachedStore) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("calendar cache: set failed", "key", key, "error", err)
	}
}

var _ Store = (*CachedStore)(nil)
