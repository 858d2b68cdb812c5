package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/commit_stock.lua
var commitStockScript string

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	commitScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		commitScript:  redis.NewScript(commitStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(sku string) string {
	return fmt.Sprintf("stock:%s", sku)
}

// ReserveStock atomically decrements cached availability. Returns false
// only when the cache knows there is not enough stock; a cold cache
// passes so the database keeps the final word.
func (c *Client) ReserveStock(ctx context.Context, sku string, quantity int) (bool, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(sku)}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	success, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return success == 1, nil
}

// ReleaseStock atomically returns reserved stock to availability,
// clamping at what the cache actually holds
func (c *Client) ReleaseStock(ctx context.Context, sku string, quantity int) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(sku)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}

	return nil
}

// CommitStock atomically drops reserved stock from the cache (final deduction)
func (c *Client) CommitStock(ctx context.Context, sku string, quantity int) error {
	_, err := c.commitScript.Run(ctx, c.rdb, []string{stockKey(sku)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("commit stock script failed: %w", err)
	}

	return nil
}

// InitStock seeds cached counters for a SKU from the ledger
func (c *Client) InitStock(ctx context.Context, sku string, available, reserved int) error {
	key := stockKey(sku)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "available", available)
	pipe.HSet(ctx, key, "reserved", reserved)

	_, err := pipe.Exec(ctx)
	return err
}

// GetStock retrieves cached counters for a SKU
func (c *Client) GetStock(ctx context.Context, sku string) (available, reserved int, err error) {
	result, err := c.rdb.HGetAll(ctx, stockKey(sku)).Result()
	if err != nil {
		return 0, 0, err
	}

	if len(result) == 0 {
		return 0, 0, fmt.Errorf("stock not cached for sku %s", sku)
	}

	var availableInt, reservedInt int
	fmt.Sscanf(result["available"], "%d", &availableInt)
	fmt.Sscanf(result["reserved"], "%d", &reservedInt)

	return availableInt, reservedInt, nil
}

// SetIdempotencyKey claims an idempotency key with TTL. Returns false
// when the key was already claimed.
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}
