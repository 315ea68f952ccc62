package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const defaultObservationTTL = 36 * time.Hour

type Client struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewClient creates a new Redis client and verifies the connection
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

	if ttl <= 0 {
		ttl = defaultObservationTTL
	}

	return &Client{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Claim marks today's (current, original) reading for a product.
// Returns false if the same reading was already claimed today.
func (c *Client) Claim(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) (bool, error) {
	key := observationKey(productID, c.now(), current, original)

	ok, err := c.rdb.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim observation failed: %w", err)
	}
	return ok, nil
}

// Release forgets a claim whose observation could not be stored
func (c *Client) Release(ctx context.Context, productID int64, current decimal.Decimal, original decimal.NullDecimal) error {
	key := observationKey(productID, c.now(), current, original)
	return c.rdb.Del(ctx, key).Err()
}

func observationKey(productID int64, day time.Time, current decimal.Decimal, original decimal.NullDecimal) string {
	orig := "-"
	if original.Valid {
		orig = original.Decimal.String()
	}
	return fmt.Sprintf("observation:%d:%s:%s:%s", productID, day.Format("2006-01-02"), current.String(), orig)
}
