package config

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore wraps the Redis client used for operator sessions and the
// start-up migration lock.
type RedisStore struct {
	rdb    *redis.Client
	locker *redislock.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, locker: redislock.New(rdb)}
}

func (s *RedisStore) Client() *redis.Client {
	return s.rdb
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// GetObject decodes the JSON stored under key. Missing keys are not an error.
func (s *RedisStore) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, objInByte, exp).Err()
}

func (s *RedisStore) RemoveKey(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}

// WithLock runs fn while holding key. Other holders make it wait up to wait.
func (s *RedisStore) WithLock(ctx context.Context, key string, ttl time.Duration, wait time.Duration, fn func() error) error {
	lock, err := s.locker.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(500*time.Millisecond), int(wait/(500*time.Millisecond))),
	})
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release(context.Background()) }()
	return fn()
}

// ConnectRedisWithRetry keeps pinging with back-off until Redis answers or ctx is done.
func ConnectRedisWithRetry(ctx context.Context, redisAddr string, logg *logrus.Logger) (*RedisStore, error) {
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		logg.Warn("REDIS_ADDRESS not set; defaulting to " + redisAddr)
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			DB:       0, // use default DB
			PoolSize: 20,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).Info("connected to redis")
			return NewRedisStore(rdb), nil
		}
		_ = rdb.Close()

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logg.WithFields(logrus.Fields{"attempt": attempt, "addr": redisAddr}).
			Warn("failed to connect redis; retrying in " + sleep.String() + ": " + err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
