// Package cache 实现仪表盘计数的 Redis 旁路缓存（cache-aside）。
//
// 两个计数：项目总数、当日完成任务数。后者的键内嵌日期，跨天后键随
// 日期变化，旧值不会被复用；新的一天首次读取时主动删除前一天的键，
// 避免按天累积的键无限增长。缓存不设过期时间，只靠显式失效。
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/metrics"
)

// ComputeFunc 缓存未命中时从存储层重新计算的回调。
type ComputeFunc func(ctx context.Context) (int64, error)

// Metrics 维护仪表盘的两个派生计数。
type Metrics struct {
	rdb    *redis.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastDay string // 上一次读取当日计数时的日期，用于跨天清理
}

// New 创建指标缓存。
func New(rdb *redis.Client, logger *slog.Logger) *Metrics {
	return &Metrics{
		rdb:    rdb,
		logger: logger,
		now:    time.Now,
	}
}

// TotalProjects 读取项目总数，未命中时计算并回填。
func (m *Metrics) TotalProjects(ctx context.Context, compute ComputeFunc) (int64, error) {
	return m.readThrough(ctx, model.CacheKeyTotalProjects, "total_projects", compute)
}

// CompletedToday 读取当日完成任务数，未命中时计算并回填。
//
// 进入新的一天时先删除前一天的键再读，保证旧值既不会被返回
// 也不会残留。
func (m *Metrics) CompletedToday(ctx context.Context, compute ComputeFunc) (int64, error) {
	today := m.now()
	m.evictStaleDay(ctx, today)
	return m.readThrough(ctx, model.CacheKeyCompletedOn(today), "tasks_completed_today", compute)
}

// InvalidateCompletedToday 任务发生任何增删改后调用，删除当日计数。
//
// 保守失效：不去判断这次变更是否真的影响了完成数，正确性优先于命中率。
func (m *Metrics) InvalidateCompletedToday(ctx context.Context) {
	m.del(ctx, model.CacheKeyCompletedOn(m.now()))
}

// InvalidateTotalProjects 项目创建/删除后调用。
func (m *Metrics) InvalidateTotalProjects(ctx context.Context) {
	m.del(ctx, model.CacheKeyTotalProjects)
}

// evictStaleDay 跨天后清理前一天的计数键。
//
// lastDay 只在删除成功后推进：Redis 出错时下一次读取会重试清理，
// 旧键不会因为一次失败而永久残留。重复删除无副作用。
func (m *Metrics) evictStaleDay(ctx context.Context, today time.Time) {
	day := today.Format("2006-01-02")

	m.mu.Lock()
	last := m.lastDay
	m.mu.Unlock()

	if last == day {
		return
	}

	// 进程刚启动时没有 lastDay 记录，按"昨天"清理一次
	stale := today.AddDate(0, 0, -1)
	if last != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", last, today.Location()); err == nil {
			stale = parsed
		}
	}
	if err := m.rdb.Del(ctx, model.CacheKeyCompletedOn(stale)).Err(); err != nil {
		m.logger.Warn("evict stale cache key failed", slog.String("error", err.Error()))
		return
	}
	if metrics.CacheEvictionTotal != nil {
		metrics.CacheEvictionTotal.Inc()
	}

	m.mu.Lock()
	m.lastDay = day
	m.mu.Unlock()
}

// readThrough 旁路缓存读路径：命中直接返回，未命中计算后回填。
func (m *Metrics) readThrough(ctx context.Context, key, counter string, compute ComputeFunc) (int64, error) {
	val, err := m.rdb.Get(ctx, key).Result()
	if err == nil {
		if parsed, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
			if metrics.CacheHitTotal != nil {
				metrics.CacheHitTotal.WithLabelValues(counter).Inc()
			}
			return parsed, nil
		}
		// 键里存了非数字，当未命中处理并覆盖
	} else if !errors.Is(err, redis.Nil) {
		// Redis 不可用时退化为每次直算
		m.logger.Warn("cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return compute(ctx)
	}

	if metrics.CacheMissTotal != nil {
		metrics.CacheMissTotal.WithLabelValues(counter).Inc()
	}

	value, err := compute(ctx)
	if err != nil {
		return 0, err
	}
	if err := m.rdb.Set(ctx, key, strconv.FormatInt(value, 10), 0).Err(); err != nil {
		m.logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return value, nil
}

// del 写后失效，失败只记日志不阻断请求。
func (m *Metrics) del(ctx context.Context, key string) {
	if err := m.rdb.Del(ctx, key).Err(); err != nil {
		m.logger.Warn("cache invalidate failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
