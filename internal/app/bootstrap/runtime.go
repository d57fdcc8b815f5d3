// Package bootstrap wires stores, caches and notification channels from
// configuration so every binary builds them the same way.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/calendar"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgres opens a pool for databaseURL, or returns nil, nil when it is empty.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildCalendarStore picks Postgres when a pool is available, memory otherwise,
// and fronts it with the Redis cache when a client is given.
func BuildCalendarStore(pool *pgxpool.Pool, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) calendar.Store {
	var store calendar.Store
	if pool != nil {
		store = calendar.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set; business hours kept in memory")
		store = calendar.NewMemoryStore(schedule.DefaultWeek())
	}
	if redisClient == nil {
		return store
	}
	ttl := calendar.DefaultCacheTTL
	if cfg != nil && cfg.HoursCacheTTL > 0 {
		ttl = cfg.HoursCacheTTL
	}
	return calendar.NewCachedStore(store, redisClient, ttl, logger)
}

// BuildAppointmentRepository picks Postgres when a pool is available, memory otherwise.
func BuildAppointmentRepository(pool *pgxpool.Pool, logger *logging.Logger) appointments.Repository {
	if pool != nil {
		return appointments.NewPostgresRepository(pool)
	}
	logger.Warn("DATABASE_URL not set; appointments kept in memory")
	return appointments.NewMemoryRepository()
}
