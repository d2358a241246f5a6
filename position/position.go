package position

import (
	"math"
	"sync"
	"time"
)

// Mode 持仓方向。
type Mode string

const (
	ModeNone  Mode = "NONE"
	ModeLong  Mode = "LONG"
	ModeShort Mode = "SHORT"
)

// Status 阶梯生命周期状态。idle 在等待首次入场；active 持仓中；
// 其余均为终态，本交易日内不再对该 symbol 开新仓。
type Status string

const (
	StatusIdle              Status = "IDLE"
	StatusActive            Status = "ACTIVE"
	StatusClosedProfit      Status = "CLOSED_PROFIT"
	StatusStopped           Status = "STOPPED"
	StatusClosedManual      Status = "CLOSED_MANUAL"
	StatusClosedGlobalLimit Status = "CLOSED_GLOBAL_LIMIT"
	StatusClosedEmergency   Status = "CLOSED_EMERGENCY"
)

// Terminal 是否终态。
func (s Status) Terminal() bool {
	switch s {
	case StatusClosedProfit, StatusStopped, StatusClosedManual,
		StatusClosedGlobalLimit, StatusClosedEmergency:
		return true
	}
	return false
}

// Position 单 symbol 的阶梯状态机。字段只在持有 mu 时读写，
// Snapshot 返回的副本供外部只读使用。
type Position struct {
	mu sync.Mutex

	Symbol string
	Mode   Mode
	Status Status

	// 入场与阶梯
	EntryPrice    float64 // 当前层的入场参考价
	AvgEntryPrice float64 // 账本 VWAP 均价
	Quantity      int
	LadderLevel   int     // 已加仓次数
	NextAddOn     float64 // 下一次加仓触发价

	// 止损止盈
	StopLoss      float64
	Target        float64
	HighWatermark float64 // 多头最高价 / 空头最低价

	// 周期预算：cycleIndex 从 1 起，flip 递增，超出 cycleTotal 后终态平仓
	CycleIndex int
	CycleTotal int

	// 开盘缺口：首 tick 相对昨收的涨跌幅
	DayOpen    float64
	PrevClose  float64
	OpenGapPct float64

	// 实时行情摘要，选股轮每秒读取
	ChangePct float64 // 相对昨收的涨跌幅（%）
	Turnover  float64 // 成交额（卢比），quote 包刷新

	RealizedPnL float64 // 已平周期累计
	LastPrice   float64
	StartedAt   time.Time
	ClosedAt    time.Time
}

// New 新建 idle 状态的阶梯。
func New(symbol string, prevClose float64, cycleTotal int) *Position {
	if cycleTotal < 1 {
		cycleTotal = 1
	}
	return &Position{
		Symbol:     symbol,
		Mode:       ModeNone,
		Status:     StatusIdle,
		PrevClose:  prevClose,
		CycleIndex: 1,
		CycleTotal: cycleTotal,
	}
}

// Lock / Unlock 暴露给引擎，tick 处理期间持锁。
func (p *Position) Lock()   { p.mu.Lock() }
func (p *Position) Unlock() { p.mu.Unlock() }

// CaptureOpen 用首 tick 记录当日开盘价与缺口。只生效一次。
// 调用方持锁。
func (p *Position) CaptureOpen(ltp float64) {
	if p.DayOpen != 0 {
		return
	}
	p.DayOpen = ltp
	if p.PrevClose > 0 {
		p.OpenGapPct = (ltp - p.PrevClose) / p.PrevClose * 100
	}
}

// Quote 用一笔 tick 刷新行情摘要：最新价、涨跌幅、成交额。
// ticker 包没有量，成交额保留上次的值。调用方持锁。
func (p *Position) Quote(ltp, volume float64) {
	p.CaptureOpen(ltp)
	p.LastPrice = ltp
	if volume > 0 {
		p.Turnover = volume * ltp
	}
	if p.PrevClose > 0 {
		p.ChangePct = (ltp - p.PrevClose) / p.PrevClose * 100
	}
}

// UnrealizedPnL 当前周期的浮动盈亏。调用方持锁。
func (p *Position) UnrealizedPnL(ltp float64) float64 {
	if p.Status != StatusActive || p.Quantity == 0 {
		return 0
	}
	if p.Mode == ModeLong {
		return (ltp - p.AvgEntryPrice) * float64(p.Quantity)
	}
	return (p.AvgEntryPrice - ltp) * float64(p.Quantity)
}

// TotalPnL 已实现 + 浮动。调用方持锁。
func (p *Position) TotalPnL(ltp float64) float64 {
	return p.RealizedPnL + p.UnrealizedPnL(ltp)
}

// UpdateWatermark 推进高水位并返回是否推进。多头取最高价，空头取最低价。
// 调用方持锁。
func (p *Position) UpdateWatermark(ltp float64) bool {
	switch p.Mode {
	case ModeLong:
		if ltp > p.HighWatermark {
			p.HighWatermark = ltp
			return true
		}
	case ModeShort:
		if ltp < p.HighWatermark || p.HighWatermark == 0 {
			p.HighWatermark = ltp
			return true
		}
	}
	return false
}

// TrailStop 从高水位回拉止损，只收紧不放松。返回是否收紧。
// 调用方持锁。
func (p *Position) TrailStop(trailingMult float64) bool {
	if p.HighWatermark == 0 {
		return false
	}
	switch p.Mode {
	case ModeLong:
		candidate := p.HighWatermark * (1 - trailingMult)
		if candidate > p.StopLoss {
			p.StopLoss = candidate
			return true
		}
	case ModeShort:
		candidate := p.HighWatermark * (1 + trailingMult)
		if candidate < p.StopLoss {
			p.StopLoss = candidate
			return true
		}
	}
	return false
}

// CyclesExhausted 周期预算是否用尽（止损后不允许再翻向）。调用方持锁。
func (p *Position) CyclesExhausted() bool {
	return p.CycleIndex >= p.CycleTotal
}

// QuantityFor 按每层投入资金计算股数，向下取整，至少 1 股。
func QuantityFor(capital, price float64) int {
	if price <= 0 {
		return 0
	}
	q := int(math.Floor(capital / price))
	if q < 1 {
		q = 1
	}
	return q
}

// Snapshot 只读副本。
type Snapshot struct {
	Symbol        string  `json:"symbol"`
	Mode          Mode    `json:"mode"`
	Status        Status  `json:"status"`
	EntryPrice    float64 `json:"entry_price"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	Quantity      int     `json:"quantity"`
	LadderLevel   int     `json:"ladder_level"`
	NextAddOn     float64 `json:"next_add_on"`
	StopLoss      float64 `json:"stop_loss"`
	Target        float64 `json:"target"`
	HighWatermark float64 `json:"high_watermark"`
	CycleIndex    int     `json:"cycle_index"`
	CycleTotal    int     `json:"cycle_total"`
	OpenGapPct    float64 `json:"open_gap_pct"`
	ChangePct     float64 `json:"change_pct"`
	Turnover      float64 `json:"turnover"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	LastPrice     float64 `json:"last_price"`
}

// Snapshot 拍一份当前状态。内部加锁。
func (p *Position) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Symbol:        p.Symbol,
		Mode:          p.Mode,
		Status:        p.Status,
		EntryPrice:    p.EntryPrice,
		AvgEntryPrice: p.AvgEntryPrice,
		Quantity:      p.Quantity,
		LadderLevel:   p.LadderLevel,
		NextAddOn:     p.NextAddOn,
		StopLoss:      p.StopLoss,
		Target:        p.Target,
		HighWatermark: p.HighWatermark,
		CycleIndex:    p.CycleIndex,
		CycleTotal:    p.CycleTotal,
		OpenGapPct:    p.OpenGapPct,
		ChangePct:     p.ChangePct,
		Turnover:      p.Turnover,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: p.UnrealizedPnL(p.LastPrice),
		LastPrice:     p.LastPrice,
	}
}
