package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/damilarekoiki/project-management/internal/pkg/metrics"
)

// ErrRateLimited 请求超出限流配额。
var ErrRateLimited = errors.New("rate limited")

const keyPrefix = "project-management:ratelimit:"

// 令牌桶放在 Redis 里，多实例共享同一配额。
// 脚本原子完成补桶与扣减，返回 {是否放行, 剩余令牌}。
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

if rate <= 0 or burst <= 0 then
  return {1, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed, tokens}
`

// Limiter 基于 Redis 令牌桶的请求限流器，桶按调用方标识区分。
type Limiter struct {
	rdb    *redis.Client
	rate   float64 // 每秒补充的令牌数
	burst  float64 // 桶容量
	script *redis.Script
}

// New 创建限流器。rate 或 burst 为 0 时限流关闭，所有请求放行。
func New(rdb *redis.Client, rate, burst float64) *Limiter {
	return &Limiter{
		rdb:    rdb,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 尝试为指定调用方取走一个令牌。
//
// 配额不足返回 ErrRateLimited；Redis 故障时放行，限流是保护手段而非
// 正确性约束。
func (l *Limiter) Allow(ctx context.Context, callerKey string) error {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return nil
	}

	start := time.Now()
	now := start.UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{keyPrefix + callerKey}, l.rate, l.burst, now).Result()
	if err != nil {
		return nil
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 1 {
		return fmt.Errorf("ratelimit invalid result")
	}

	if metrics.RateLimitWaitDuration != nil {
		metrics.RateLimitWaitDuration.Observe(time.Since(start).Seconds())
	}

	if toInt64(values[0]) != 1 {
		if metrics.RateLimitRejectTotal != nil {
			metrics.RateLimitRejectTotal.Inc()
		}
		return ErrRateLimited
	}
	return nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
