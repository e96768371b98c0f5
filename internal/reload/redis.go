package reload

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig represents the Redis broadcast configuration
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Channel     string        `mapstructure:"channel"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// RedisBroadcaster publishes reload events on a Redis channel so sibling
// processes holding cached configuration can refresh. Registered as a
// regular listener.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster creates the broadcaster and verifies connectivity
func NewRedisBroadcaster(cfg *RedisConfig) (*RedisBroadcaster, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
		PoolSize:    10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "confd:reload"
	}

	return &RedisBroadcaster{client: client, channel: channel}, nil
}

// Notify publishes one reload event; it satisfies ListenerFunc
func (b *RedisBroadcaster) Notify(ctx context.Context) error {
	return b.client.Publish(ctx, b.channel, time.Now().UTC().Format(time.RFC3339)).Err()
}

// Close closes the Redis client
func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
