package redisutil

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The dispatch guard keys one in-flight outbound call per borrower phone.
// SetNX holds the slot; the TTL is a backstop in case a session dies without
// releasing it.
const dispatchKeyPrefix = "collections_active_call"

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

var ErrKeyNotExist = redis.Nil

type Service struct {
	client *redis.Client
}

func NewService(config *Config) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{client: client}, nil
}

// DispatchKey generates the guard key for a borrower phone.
func DispatchKey(phone string) string {
	return fmt.Sprintf("%s:%s", dispatchKeyPrefix, phone)
}

// AcquireDispatch claims the in-flight call slot for phone. Returns false when
// another call to the same borrower is already in progress.
func (r *Service) AcquireDispatch(ctx context.Context, phone string, room string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, DispatchKey(phone), room, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire dispatch slot: %w", err)
	}
	return ok, nil
}

// ReleaseDispatch frees the in-flight call slot for phone. Releasing a slot
// that is not held is not an error.
func (r *Service) ReleaseDispatch(ctx context.Context, phone string) error {
	return r.client.Del(ctx, DispatchKey(phone)).Err()
}

// GetValue gets a value from Redis by key.
func (r *Service) GetValue(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetValue sets a value in Redis with TTL.
func (r *Service) SetValue(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Service) Close() error {
	return r.client.Close()
}
