package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket 令牌桶限速器。IB 网关对 REST 请求有硬性频率限制，
// 超限会直接断会话，所以所有网关调用前都要先取令牌。
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // 每秒补充的令牌数
	lastRefill time.Time
}

// NewTokenBucket 创建令牌桶，初始装满
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// refill 按流逝时间补充令牌（持锁调用）
func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add <= 0 {
		return
	}
	tb.tokens += add
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Allow 尝试取一个令牌，不阻塞
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 阻塞到取得令牌或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		interval := time.Second
		if tb.refillRate > 0 {
			interval = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
