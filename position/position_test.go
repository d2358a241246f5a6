package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureOpenOnlyOnce(t *testing.T) {
	p := New("RELIANCE", 2400, 3)
	p.Lock()
	p.CaptureOpen(2472) // +3%
	p.CaptureOpen(2500) // 忽略
	gap := p.OpenGapPct
	open := p.DayOpen
	p.Unlock()

	assert.InDelta(t, 3.0, gap, 1e-9)
	assert.Equal(t, 2472.0, open)
}

func TestCaptureOpenWithoutPrevClose(t *testing.T) {
	p := New("RELIANCE", 0, 3)
	p.Lock()
	p.CaptureOpen(100)
	p.Unlock()
	assert.Equal(t, 0.0, p.OpenGapPct)
}

func TestQuoteUpdatesLiveFields(t *testing.T) {
	p := New("RELIANCE", 100, 3)
	p.Lock()
	defer p.Unlock()

	p.Quote(102, 50000)
	assert.Equal(t, 102.0, p.LastPrice)
	assert.InDelta(t, 2.0, p.ChangePct, 1e-9)
	assert.InDelta(t, 2.0, p.OpenGapPct, 1e-9)
	assert.InDelta(t, 50000*102.0, p.Turnover, 1e-6)

	// ticker 包无量，成交额保留；缺口不重算
	p.Quote(99, 0)
	assert.Equal(t, 99.0, p.LastPrice)
	assert.InDelta(t, -1.0, p.ChangePct, 1e-9)
	assert.InDelta(t, 2.0, p.OpenGapPct, 1e-9)
	assert.InDelta(t, 50000*102.0, p.Turnover, 1e-6)
}

func TestUnrealizedPnLLongShort(t *testing.T) {
	long := New("A", 100, 1)
	long.Mode = ModeLong
	long.Status = StatusActive
	long.AvgEntryPrice = 100
	long.Quantity = 10
	assert.InDelta(t, 50.0, long.UnrealizedPnL(105), 1e-9)

	short := New("B", 100, 1)
	short.Mode = ModeShort
	short.Status = StatusActive
	short.AvgEntryPrice = 100
	short.Quantity = 10
	assert.InDelta(t, 50.0, short.UnrealizedPnL(95), 1e-9)
	assert.InDelta(t, -30.0, short.UnrealizedPnL(103), 1e-9)
}

func TestUnrealizedPnLZeroWhenFlat(t *testing.T) {
	p := New("A", 100, 1)
	assert.Equal(t, 0.0, p.UnrealizedPnL(120))
}

func TestWatermarkAndTrailLong(t *testing.T) {
	p := New("A", 100, 1)
	p.Mode = ModeLong
	p.Status = StatusActive
	p.StopLoss = 99.5
	p.HighWatermark = 100

	assert.True(t, p.UpdateWatermark(104))
	assert.False(t, p.UpdateWatermark(103), "lower price never moves long watermark")

	// 2% 回拉：104 * 0.98 = 101.92 > 99.5，收紧
	assert.True(t, p.TrailStop(0.02))
	assert.InDelta(t, 101.92, p.StopLoss, 1e-9)

	// 再次计算得到相同候选值，不再收紧
	assert.False(t, p.TrailStop(0.02))
}

func TestTrailStopShortTightensDownOnly(t *testing.T) {
	p := New("A", 100, 1)
	p.Mode = ModeShort
	p.Status = StatusActive
	p.StopLoss = 100.5
	p.HighWatermark = 100

	assert.True(t, p.UpdateWatermark(96))
	assert.True(t, p.TrailStop(0.02))
	assert.InDelta(t, 97.92, p.StopLoss, 1e-9)

	// 反弹不放松止损
	p.UpdateWatermark(99)
	assert.False(t, p.TrailStop(0.02))
	assert.InDelta(t, 97.92, p.StopLoss, 1e-9)
}

func TestCyclesExhausted(t *testing.T) {
	p := New("A", 100, 3)
	assert.False(t, p.CyclesExhausted())
	p.CycleIndex = 3
	assert.True(t, p.CyclesExhausted())
}

func TestQuantityFor(t *testing.T) {
	assert.Equal(t, 10, QuantityFor(1000, 100))
	assert.Equal(t, 9, QuantityFor(1000, 105))
	assert.Equal(t, 1, QuantityFor(1000, 5000), "floor at one share")
	assert.Equal(t, 0, QuantityFor(1000, 0))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusActive.Terminal())
	for _, s := range []Status{StatusClosedProfit, StatusStopped, StatusClosedManual, StatusClosedGlobalLimit, StatusClosedEmergency} {
		assert.True(t, s.Terminal(), string(s))
	}
}

func TestPublisherNonBlocking(t *testing.T) {
	pub := NewPublisher()
	ch := pub.Subscribe()

	pub.Publish([]Snapshot{{Symbol: "A"}})
	pub.Publish([]Snapshot{{Symbol: "B"}}) // 订阅者未消费，丢弃

	got := <-ch
	assert.Equal(t, "A", got[0].Symbol)

	select {
	case <-ch:
		t.Fatal("second publish should have been dropped")
	default:
	}
}
