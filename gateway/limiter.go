package gateway

import (
	"sync"
	"time"
)

// RateLimiter 令牌桶限流 + 连接槽位池，约束对券商的出站调用。
// 令牌桶 burst=1：上游按每秒请求数限流，不允许突发。
type RateLimiter struct {
	rate   float64 // 每秒补充令牌数
	tokens float64
	last   time.Time
	mu     sync.Mutex

	maxConns int
	conns    chan struct{}

	maxRetries int
	sleep      func(time.Duration) // 测试注入
}

// NewRateLimiter 创建限流器。rate 为每秒请求数，maxConns 为并发连接槽位。
func NewRateLimiter(rate float64, maxConns int) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	return &RateLimiter{
		rate:       rate,
		tokens:     rate,
		last:       time.Now(),
		maxConns:   maxConns,
		conns:      make(chan struct{}, maxConns),
		maxRetries: 3,
		sleep:      time.Sleep,
	}
}

// Acquire 阻塞等待一个令牌，最多重试 maxRetries 次。
// 返回 false 表示调用方应跳过本次请求，而不是无限阻塞。
func (l *RateLimiter) Acquire() bool {
	for retries := 0; retries < l.maxRetries; retries++ {
		l.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(l.last).Seconds()
		l.tokens += elapsed * l.rate
		if l.tokens > l.rate {
			l.tokens = l.rate
		}
		l.last = now

		if l.tokens >= 1 {
			l.tokens -= 1
			l.mu.Unlock()
			return true
		}
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		l.sleep(wait)
	}
	return false
}

// AcquireConnection 占用一个连接槽位，满时阻塞。
func (l *RateLimiter) AcquireConnection() {
	l.conns <- struct{}{}
}

// ReleaseConnection 释放连接槽位。调用方必须在所有退出路径上释放（defer）。
func (l *RateLimiter) ReleaseConnection() {
	select {
	case <-l.conns:
	default:
		// 多余的释放直接忽略
	}
}

// ActiveConnections 当前占用的槽位数。
func (l *RateLimiter) ActiveConnections() int {
	return len(l.conns)
}
