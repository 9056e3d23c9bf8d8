package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSnapshotStore keeps snapshots in Redis under
// autobyteus:agents:<agent_id>:working_context_snapshot.
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore connects and pings addr.
func NewRedisSnapshotStore(addr, password string, db int) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisSnapshotStore{client: client}, nil
}

func redisSnapshotKey(agentID string) string {
	return "autobyteus:agents:" + agentID + ":working_context_snapshot"
}

func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}

func (s *RedisSnapshotStore) Exists(ctx context.Context, agentID string) (bool, error) {
	if err := validateAgentID(agentID); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, redisSnapshotKey(agentID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis snapshot lookup: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSnapshotStore) Read(ctx context.Context, agentID string) (map[string]interface{}, error) {
	if err := validateAgentID(agentID); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, redisSnapshotKey(agentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis snapshot read: %w", err)
	}
	return decodeSnapshotPayload(data)
}

func (s *RedisSnapshotStore) Write(ctx context.Context, agentID string, payload map[string]interface{}) error {
	if err := validateAgentID(agentID); err != nil {
		return err
	}
	data, err := encodeSnapshotPayload(payload)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisSnapshotKey(agentID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis snapshot write: %w", err)
	}
	return nil
}
