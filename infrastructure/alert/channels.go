package alert

import (
	"fmt"

	"go.uber.org/zap"

	"ladder-trader-go/infrastructure/logger"
)

// LogChannel 把告警写进结构化日志，总是可用的保底通道。
type LogChannel struct {
	log  *logger.Logger
	name string
}

// NewLogChannel 创建日志告警通道。
func NewLogChannel(name string, log *logger.Logger) *LogChannel {
	return &LogChannel{log: log, name: name}
}

func (c *LogChannel) Send(a Alert) error {
	fields := []zap.Field{zap.String("level", a.Level)}
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch a.Level {
	case "CRITICAL":
		c.log.Error("ALERT: "+a.Message, fields...)
	case "WARNING":
		c.log.Warn("ALERT: "+a.Message, fields...)
	default:
		c.log.Info("ALERT: "+a.Message, fields...)
	}
	return nil
}

func (c *LogChannel) Name() string { return c.name }

// MockChannel 测试用通道，记录收到的全部告警。
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建模拟通道。
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func (c *MockChannel) Send(a Alert) error {
	if c.shouldErr {
		return fmt.Errorf("mock channel error")
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *MockChannel) Name() string { return c.name }

// Alerts 收到的全部告警。
func (c *MockChannel) Alerts() []Alert { return c.alerts }

// Count 收到的告警数量。
func (c *MockChannel) Count() int { return len(c.alerts) }

// SetShouldError 让 Send 返回错误。
func (c *MockChannel) SetShouldError(v bool) { c.shouldErr = v }
