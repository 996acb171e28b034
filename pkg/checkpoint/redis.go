package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all checkpoint keys (e.g., "ethoflow:checkpoints:")
	Prefix string

	// TTL is the time-to-live for checkpoint keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration
}

// DefaultRedisConfig returns defaults for address.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address: address,
		Prefix:  "ethoflow:checkpoints:",
		TTL:     7 * 24 * time.Hour,
		Timeout: 5 * time.Second,
	}
}

// RedisBackend stores checkpoints in Redis so runs on different machines
// exporting to the same shared destination can resume each other.
type RedisBackend struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisBackend connects and pings the server.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{cfg: cfg, client: client}, nil
}

// key returns the Redis key for a checkpoint ID.
func (b *RedisBackend) key(id string) string {
	return b.cfg.Prefix + id
}

// runKey indexes the incomplete checkpoint of a run key.
func (b *RedisBackend) runKey(key string) string {
	return b.cfg.Prefix + "index:run:" + sanitizeKey(key)
}

// Save persists a checkpoint and maintains the run index.
func (b *RedisBackend) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.key(cp.ID), data, b.cfg.TTL)
	if cp.Phase == PhaseComplete {
		pipe.Del(ctx, b.runKey(cp.Key))
	} else {
		pipe.Set(ctx, b.runKey(cp.Key), cp.ID, b.cfg.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to Redis: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint.
func (b *RedisBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to load checkpoint from Redis: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a checkpoint and its index entry.
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	cp, err := b.Load(ctx, id)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.key(id))
	if cp != nil {
		pipe.Del(ctx, b.runKey(cp.Key))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// FindByKey looks up the run index.
func (b *RedisBackend) FindByKey(ctx context.Context, key string) (*Checkpoint, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	id, err := b.client.Get(lookupCtx, b.runKey(key)).Result()
	cancel()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to find checkpoint: %w", err)
	}

	cp, err := b.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Phase == PhaseComplete {
		return nil, os.ErrNotExist
	}
	return cp, nil
}

// Name returns "redis".
func (b *RedisBackend) Name() string {
	return "redis"
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
