package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultKeyPrefix = "roastreel:cache:"

// RedisConfig describes the Redis backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps entries as plain Redis strings with no TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.WithFields(logrus.Fields{"addr": cfg.Addr, "db": cfg.DB}).Info("Redis cache connected")
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) Put(ctx context.Context, key string, value any) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	data, err := encode(key, value)
	if err != nil {
		return "", err
	}

	redisKey := s.prefix + key
	if err := s.client.Set(ctx, redisKey, data, 0).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Cache set failed")
		return "", fmt.Errorf("redis set %q: %w", key, err)
	}
	return redisKey, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ValidateKey(key); err != nil {
		return Entry{}, false, err
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Cache get failed")
		return Entry{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return Entry{Key: key, Raw: data}, true, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
