package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dashboardGenKey    = "gmao:dashboard:gen"
	dashboardKeyFormat = "gmao:dashboard:%d:%s"
)

// DashboardCache 看板读穿缓存。
// 键中带有代数，任何台账写入后递增代数即可整体失效。
type DashboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDashboardCache rdb 为 nil 或 ttl<=0 时返回 nil（不缓存）
func NewDashboardCache(rdb *redis.Client, ttl time.Duration) *DashboardCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &DashboardCache{rdb: rdb, ttl: ttl}
}

func (c *DashboardCache) key(ctx context.Context, userID string) (string, error) {
	gen, err := c.rdb.Get(ctx, dashboardGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf(dashboardKeyFormat, gen, userID), nil
}

// Get 命中返回 true
func (c *DashboardCache) Get(ctx context.Context, userID string, dst interface{}) (bool, error) {
	key, err := c.key(ctx, userID)
	if err != nil {
		return false, err
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

func (c *DashboardCache) Set(ctx context.Context, userID string, value interface{}) error {
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}

func (c *DashboardCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, dashboardGenKey).Err()
}
