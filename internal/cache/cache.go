package cache

import (
	"sync"
	"time"
)

// 派生视图的缓存键，写操作据此做精确失效。
const (
	KeyTodayStats    = "today-stats"
	KeyWeekStats     = "week-stats"
	KeySettings      = "settings"
	KeyGoals         = "goals"
	KeyStreak        = "streak"
	KeyWeightSummary = "weight-summary"
)

// DefaultTTL 是派生视图的缓存时长。
const DefaultTTL = 30 * time.Second

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

// Cache 是进程内的短 TTL 读缓存：命中期内直接返回，过期后重新拉取，
// 拉取失败时退回最近一次成功的值（last-known-good）。
// 它只保证单进程内的读己之写一致性，跨进程不做任何协调。
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// New 构造缓存；now 传 nil 时使用系统时钟，测试可注入假时钟。
func New(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get 返回 key 对应的缓存值；过期或缺失时调用 fetch 刷新。
// fetch 失败而缓存里仍有旧值时返回旧值，否则把错误抛给调用方。
func (c *Cache) Get(key string, fetch func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	cached, ok := c.entries[key]
	now := c.now()
	c.mu.Unlock()

	if ok && now.Sub(cached.fetchedAt) < c.ttl {
		return cached.value, nil
	}

	// fetch 可能访问外部存储，不能持锁调用
	value, err := fetch()
	if err != nil {
		if ok {
			return cached.value, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// Invalidate 丢弃指定键的缓存条目。
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidateAll 清空整个缓存。
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
