// Package dashboard 实现看板查询的短 TTL 缓存
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"llm-observability-api/internal/application/aggregate"
	"llm-observability-api/internal/domain/repository"
	apperrors "llm-observability-api/pkg/errors"
	"llm-observability-api/pkg/logger"
	"llm-observability-api/pkg/metrics"
)

// Provider 看板数据源
type Provider interface {
	Dashboard(ctx context.Context, rng aggregate.Range, filter repository.MetricFilter) (*aggregate.Dashboard, error)
}

// ByteStore 跨实例共享的字节缓存；实现为 nil 安全的可选依赖
type ByteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cacheEntry struct {
	payload   *aggregate.Dashboard
	expiresAt time.Time
}

// Cache 看板结果缓存。
// 同一键的并发未命中合并为一次重算，其余调用方等待并共享结果或错误；
// 重算挂在脱离调用方取消的 context 上，单个调用方断开不会作废共享计算。
type Cache struct {
	provider Provider
	store    ByteStore
	ttl      time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group
	now   func() time.Time
}

// NewCache 创建缓存；store 可为 nil，仅用本地缓存
func NewCache(provider Provider, store ByteStore, ttl time.Duration) *Cache {
	return &Cache{
		provider: provider,
		store:    store,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// cacheKey 由区间标签与过滤条件确定性拼出缓存键
func cacheKey(label string, filter repository.MetricFilter) string {
	return fmt.Sprintf("dashboard:%s:role=%s:model=%s:status=%s",
		label, filter.UserRole, filter.Model, filter.Status)
}

// Get 返回看板载荷，命中返回缓存副本，过期或未命中触发重算。
// 重算失败时所有等待方收到同一错误，不缓存错误结果。
func (c *Cache) Get(ctx context.Context, rng aggregate.Range, filter repository.MetricFilter) (*aggregate.Dashboard, error) {
	key := cacheKey(rng.Label, filter)

	if d, ok := c.lookup(key); ok {
		metrics.DashboardCacheRequests.WithLabelValues("hit").Inc()
		return d, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// 进组后再查一次，落后于首个完成者的排队调用直接复用
		if d, ok := c.lookup(key); ok {
			return d, nil
		}
		return c.recompute(context.WithoutCancel(ctx), key, rng, filter)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		metrics.DashboardCacheRequests.WithLabelValues("shared").Inc()
	} else {
		metrics.DashboardCacheRequests.WithLabelValues("miss").Inc()
	}
	return v.(*aggregate.Dashboard), nil
}

func (c *Cache) lookup(key string) (*aggregate.Dashboard, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		// 过期即删，键空间由调用方的过滤组合决定，不能无限堆积
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.payload, true
}

func (c *Cache) recompute(ctx context.Context, key string, rng aggregate.Range, filter repository.MetricFilter) (*aggregate.Dashboard, error) {
	// 共享缓存命中可以省掉一次聚合
	if c.store != nil {
		if data, err := c.store.Get(ctx, key); err == nil && len(data) > 0 {
			var d aggregate.Dashboard
			if err := json.Unmarshal(data, &d); err == nil {
				c.fill(key, &d)
				return &d, nil
			}
			logger.Warn(ctx, "discarding undecodable dashboard cache entry", "key", key)
		}
	}

	d, err := c.provider.Dashboard(ctx, rng, filter)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrCacheCompute.WithError(err)
	}

	c.fill(key, d)
	if c.store != nil {
		data, err := json.Marshal(d)
		if err == nil {
			if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
				logger.Warn(ctx, "failed to write shared dashboard cache", "key", key, "error", err.Error())
			}
		}
	}
	return d, nil
}

func (c *Cache) fill(key string, d *aggregate.Dashboard) {
	now := c.now()
	c.mu.Lock()
	// 写入顺带清掉已过期的键，一次性过滤组合不会永久占着内存
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{payload: d, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}
