package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/set_stock.lua
var setStockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	stockScript   *redis.Script
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

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		stockScript:   redis.NewScript(setStockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock takes a lock with a random owner token. ok is false when the
// lock is already held.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.New().String()
	ok, err = c.rdb.SetNX(ctx, lockName(lockKey), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock failed: %w", err)
	}
	return token, ok, nil
}

// ReleaseLock deletes the lock only if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockName(lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// SetStock mirrors an item's committed quantity. version orders writes so
// a late writer cannot replace a newer snapshot.
func (c *Client) SetStock(ctx context.Context, ownerID, itemID int64, quantity int, status string, version int64) error {
	_, err := c.stockScript.Run(ctx, c.rdb, []string{stockKey(ownerID, itemID)}, quantity, status, version).Result()
	if err != nil {
		return fmt.Errorf("set stock script failed: %w", err)
	}
	return nil
}

// GetStock retrieves the mirrored quantity and status. found is false on a
// cache miss.
func (c *Client) GetStock(ctx context.Context, ownerID, itemID int64) (quantity int, status string, found bool, err error) {
	result, err := c.rdb.HGetAll(ctx, stockKey(ownerID, itemID)).Result()
	if err != nil {
		return 0, "", false, err
	}

	if len(result) == 0 {
		return 0, "", false, nil
	}

	quantity, err = strconv.Atoi(result["quantity"])
	if err != nil {
		return 0, "", false, fmt.Errorf("corrupt stock entry for item %d: %w", itemID, err)
	}

	return quantity, result["status"], true, nil
}

// DeleteStock drops the mirrored entry for an item
func (c *Client) DeleteStock(ctx context.Context, ownerID, itemID int64) error {
	err := c.rdb.Del(ctx, stockKey(ownerID, itemID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func lockName(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

func stockKey(ownerID, itemID int64) string {
	return fmt.Sprintf("stock:%d:%d", ownerID, itemID)
}
