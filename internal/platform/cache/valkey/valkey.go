// Package valkey provides a Valkey/Redis cache driver built on valkey-go.
package valkey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/eventinvite/eventinvite-go/internal/platform/cache"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
)

func init() {
	cache.RegisterDriver("valkey", func(options map[string]any, logger *slog.Logger) (cache.CacheWithCounter, error) {
		cfg := DefaultConfig()
		if options != nil {
			if v, ok := options["addr"].(string); ok && v != "" {
				cfg.Addr = v
			}
			if v, ok := options["password"].(string); ok {
				cfg.Password = v
			}
			if v, ok := options["db"]; ok {
				if n, ok := toInt(v); ok {
					cfg.DB = n
				}
			}
			if v, ok := options["default_ttl_seconds"]; ok {
				if secs, ok := toInt(v); ok && secs > 0 {
					cfg.DefaultTTL = time.Duration(secs) * time.Second
				}
			}
		}
		return New(cfg, logger)
	})
}

// toInt converts various numeric types to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Config holds Valkey connection configuration.
type Config struct {
	Addr       string        // host:port
	Password   string        // optional
	DB         int           // database number
	DefaultTTL time.Duration // TTL applied when callers pass 0
}

// DefaultConfig returns sensible defaults for a local Valkey instance.
func DefaultConfig() *Config {
	return &Config{
		Addr:       "localhost:6379",
		DefaultTTL: 15 * time.Minute,
	}
}

// Cache implements cache.CacheWithCounter backed by a Valkey server.
type Cache struct {
	client valkeygo.Client
	cfg    *Config
	logger *slog.Logger
}

// New connects to the configured Valkey server.
func New(cfg *Config, logger *slog.Logger) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.Addr, err)
	}

	return &Cache{
		client: client,
		cfg:    cfg,
		logger: logutil.NoopIfNil(logger),
	}, nil
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	cmd := c.client.B().Set().Key(key).Value(valkeygo.BinaryString(value)).Ex(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// DeletePrefix removes every key starting with prefix using SCAN+DEL.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		entry, err := c.client.Do(ctx,
			c.client.B().Scan().Cursor(cursor).Match(prefix+"*").Count(100).Build()).AsScanEntry()
		if err != nil {
			return err
		}

		// One DEL per key: matched keys may hash to different slots, and
		// valkey-go rejects multi-key commands that cross slots.
		for _, key := range entry.Elements {
			if err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error(); err != nil {
				return err
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment adds delta to a counter. A new counter gets the given TTL.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}

	count, err := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, err
	}

	// NX keeps the window anchored to the first increment.
	expire := c.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Nx().Build()
	if err := c.client.Do(ctx, expire).Error(); err != nil {
		return count, err
	}

	return count, nil
}

// GetCount returns the current counter value. Returns 0 if not found.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	count, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Reset sets a counter to 0.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Close releases the client connection.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
