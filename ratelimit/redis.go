package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "cloudnest:ratelimit:"

// Redis shares counters between instances. Each window is one key that
// expires together with the window.
type Redis struct {
	client redis.Cmdable
	cfg    Config
	prefix string
	now    func() time.Time
}

func NewRedis(client redis.Cmdable, cfg Config) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Redis{client: client, cfg: cfg, prefix: defaultPrefix, now: time.Now}, nil
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *Redis) windowKey(key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", r.prefix, key, start.Unix())
}

func (r *Redis) Allow(ctx context.Context, key string) (*Result, error) {
	start := windowStart(r.now(), r.cfg.Window)
	k := r.windowKey(key, start)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, r.cfg.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return newResult(r.cfg, incr.Val(), start), nil
}
