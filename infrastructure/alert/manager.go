package alert

import (
	"fmt"
	"sync"
	"time"
)

// Alert 一条运行时告警。引擎在触发风控事件（行情流放弃重连、
// 全局止盈止损、紧急平仓）时发出。
type Alert struct {
	Level     string // "INFO", "WARNING", "CRITICAL"
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel 告警通道接口。
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 告警管理器，带同键限流：相同 level+message 在间隔内只发一次，
// 避免每个 tick 重复告警刷屏。
type Manager struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// Throttler 同键限流器。
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.Mutex
}

// NewThrottler 创建限流器。
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 同一 key 在间隔内只放行一次。
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	last, ok := t.lastSent[key]
	if !ok || now.Sub(last) >= t.interval {
		t.lastSent[key] = now
		return true
	}
	return false
}

// Clear 清空限流记录。
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// NewManager 创建告警管理器。
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// Send 发送告警到所有通道。被限流时静默丢弃。
// 只有全部通道失败才返回错误。
func (m *Manager) Send(a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if !m.throttle.Allow(a.Level + ":" + a.Message) {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastErr error
	sent := 0
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			lastErr = fmt.Errorf("channel %s: %w", ch.Name(), err)
		} else {
			sent++
		}
	}
	if sent == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// Info / Warning / Critical 按级别发送。
func (m *Manager) Info(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: "INFO", Message: message, Fields: fields})
}

func (m *Manager) Warning(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: "WARNING", Message: message, Fields: fields})
}

func (m *Manager) Critical(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: "CRITICAL", Message: message, Fields: fields})
}

// AddChannel 添加通道。
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()
}

// ResetThrottle 清空限流状态，测试用。
func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}
