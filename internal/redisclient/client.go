package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"provenance-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// DefaultStatusTTL is how long a cached product status stays valid.
const DefaultStatusTTL = 10 * time.Minute

// Client caches the derived status of products.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
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

	return NewWithRedis(rdb, ttl), nil
}

// NewWithRedis wraps an existing client.
func NewWithRedis(rdb *redis.Client, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &Client{rdb: rdb, ttl: ttl}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks that Redis answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func statusKey(productID string) string {
	return fmt.Sprintf("product-status:%s", productID)
}

// SetStatus caches the current status and location of a product.
func (c *Client) SetStatus(ctx context.Context, productID string, status models.Status, location string) error {
	key := statusKey(productID)

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "status", uint32(status), "location", location)
	pipe.Expire(ctx, key, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache status for %s: %w", productID, err)
	}
	return nil
}

// GetStatus returns the cached status of a product; ok is false on a miss.
func (c *Client) GetStatus(ctx context.Context, productID string) (status models.Status, location string, ok bool, err error) {
	result, err := c.rdb.HGetAll(ctx, statusKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", false, nil
	}
	if err != nil {
		return 0, "", false, err
	}
	if len(result) == 0 {
		return 0, "", false, nil
	}

	n, err := strconv.ParseUint(result["status"], 10, 32)
	if err != nil {
		return 0, "", false, fmt.Errorf("corrupt cached status for %s: %w", productID, err)
	}
	return models.Status(n), result["location"], true, nil
}
