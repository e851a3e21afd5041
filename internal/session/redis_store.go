package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iep-rehearsal/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "iep:session:"

var _ Store = (*RedisStore)(nil)

// RedisStore shares sessions between server replicas. Every key carries the
// session TTL, refreshed on Save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionStore"),
	}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func (r *RedisStore) Create(ctx context.Context, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to create session in redis", zap.String("sessionID", s.ID), zap.Error(err))
		return fmt.Errorf("failed to create session in redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.logger.Debug("Session created", zap.String("sessionID", s.ID), zap.Duration("ttl", r.ttl))
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		r.logger.Error("Failed to get session from redis", zap.String("sessionID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	return decode(data)
}

// Save overwrites an existing session and refreshes its TTL.
func (r *RedisStore) Save(ctx context.Context, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ok, err := r.client.SetXX(ctx, sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to save session in redis", zap.String("sessionID", s.ID), zap.Error(err))
		return fmt.Errorf("failed to save session in redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, s.ID)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete session from redis", zap.String("sessionID", id), zap.Error(err))
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", db))
	return client, nil
}
