package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for reports (0 means no expiration)
}

// DefaultRedisConfig returns the local defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "deepresearch:report:",
		TTL:    7 * 24 * time.Hour,
	}
}

// RedisStore stores each report as a JSON string and keeps a sorted set of
// ids scored by creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisStoreWithClient(client, config.Prefix, config.TTL)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisConfig().Prefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Save writes the report and indexes it.
func (s *RedisStore) Save(ctx context.Context, report *Report) error {
	if err := validate(report); err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(report.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(report.CreatedAt.UnixNano()),
		Member: report.SessionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store report in Redis: %w", err)
	}
	return nil
}

// Load reads one report.
func (s *RedisStore) Load(ctx context.Context, id string) (*Report, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// List returns the newest reports. Expired entries are pruned from the
// index as they are found.
func (s *RedisStore) List(ctx context.Context, limit int) ([]*Report, error) {
	n := listLimit(limit)
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list report ids: %w", err)
	}

	out := make([]*Report, 0, len(ids))
	for _, id := range ids {
		report, err := s.Load(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				s.client.ZRem(ctx, s.indexKey(), id)
				continue
			}
			return nil, err
		}
		out = append(out, report)
	}
	return out, nil
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
