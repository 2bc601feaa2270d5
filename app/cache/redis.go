package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares cached entries between instances.
type Redis struct {
	client *redis.Client
	clock  func() time.Time
}

var _ Cache = (*Redis)(nil)

func NewRedis(addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Redis{client: client, clock: time.Now}, nil
}

// Key maps an entry key to a short, fixed-length Redis key.
func Key(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("entry:%x", hash[:8])
}

func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := r.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		// Corrupt or colliding payloads count as a miss.
		r.client.Del(ctx, Key(key))
		return nil, false, nil
	}

	if entry.Expired(r.clock()) {
		return nil, false, nil
	}

	return &entry, true, nil
}

func (r *Redis) Set(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", entry.Key, err)
	}

	if err := r.client.Set(ctx, Key(entry.Key), data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", entry.Key, err)
	}

	return nil
}

func (r *Redis) Health(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"status": "healthy",
		"type":   BackendRedis,
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if dbSize, err := r.client.DBSize(ctx).Result(); err == nil {
		health["key_count"] = dbSize
	}

	return health
}

func (r *Redis) Close() error {
	return r.client.Close()
}
