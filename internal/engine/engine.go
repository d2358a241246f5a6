package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ladder-trader-go/config"
	"ladder-trader-go/infrastructure/alert"
	"ladder-trader-go/infrastructure/logger"
	"ladder-trader-go/metrics"
	"ladder-trader-go/order"
	"ladder-trader-go/position"
	"ladder-trader-go/store"
)

// 主循环与快照发布的节拍。
const (
	controlInterval = time.Second
	publishInterval = 500 * time.Millisecond
)

// Components 引擎依赖组件。
type Components struct {
	Broker       Broker
	Ledger       *order.Ledger
	AlertManager *alert.Manager
	Publisher    *position.Publisher
	Logger       *logger.Logger
}

// Engine 阶梯交易引擎：按盘前候选启动每标的状态机，
// 消费 tick 推进阶梯，周期性执行全局风控与收盘清算。
type Engine struct {
	broker   Broker
	ledger   *order.Ledger
	alertMgr *alert.Manager
	pub      *position.Publisher
	logger   *logger.Logger

	settings atomic.Pointer[config.StrategySettings]

	mu        sync.RWMutex
	positions map[string]*position.Position

	// 会话内启动过的 symbol。名额一旦占用当日不退回，
	// 新 symbol 在名额用尽后不得入场。
	startedMu sync.Mutex
	started   map[string]bool

	running       atomic.Bool
	tradingHalted atomic.Bool
	squaredOff    atomic.Bool // 收盘清算只做一次

	tickLatency *metrics.LatencyTracker

	stopChan chan struct{}
	doneChan chan struct{}

	now func() time.Time // 测试注入
}

// New 创建引擎。
func New(settings config.StrategySettings, components Components) (*Engine, error) {
	if components.Broker == nil {
		return nil, errors.New("broker is required")
	}
	if components.Ledger == nil {
		return nil, errors.New("order ledger is required")
	}
	if components.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if components.Publisher == nil {
		components.Publisher = position.NewPublisher()
	}

	e := &Engine{
		broker:      components.Broker,
		ledger:      components.Ledger,
		alertMgr:    components.AlertManager,
		pub:         components.Publisher,
		logger:      components.Logger,
		positions:   make(map[string]*position.Position),
		started:     make(map[string]bool),
		tickLatency: metrics.NewLatencyTracker(1000),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		now:         time.Now,
	}
	s := settings.Normalize()
	e.settings.Store(&s)
	return e, nil
}

// ApplySettings 热更新策略参数。已计算出的价位（止损/止盈/加仓触发价）
// 保持不变，比例参数与全局阈值对后续计算立即生效。
func (e *Engine) ApplySettings(s config.StrategySettings) {
	n := s.Normalize()
	e.settings.Store(&n)
	e.logger.Info("strategy settings applied",
		zap.Int("max_ladders", n.MaxLadderStocks),
		zap.Int("gainers", n.TopNGainers),
		zap.Int("losers", n.TopNLosers),
		zap.Int("cycles", n.CyclesPerStock))
}

// Settings 当前生效的策略参数。
func (e *Engine) Settings() config.StrategySettings {
	return *e.settings.Load()
}

// StartStrategy 把盘前候选全量登记为 idle 阶梯并返回新登记的 symbol，
// 调用方据此订阅行情。入场由之后的选股轮按实时行情决定。
// 幂等追加：已登记的 symbol 不会重复。券商未连接或不在交易时段时拒绝。
func (e *Engine) StartStrategy(candidates []store.Candidate) ([]string, error) {
	if !e.broker.IsConnected() {
		return nil, errors.New("broker not connected")
	}
	if !withinMarketHours(e.now()) {
		return nil, errors.New("outside market hours")
	}
	s := e.Settings()

	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Symbol == "" {
			continue
		}
		if _, ok := e.positions[c.Symbol]; ok {
			continue
		}
		p := position.New(c.Symbol, c.PrevClose, s.CyclesPerStock)
		// 盘前成交额兜底，等 quote 包刷新
		p.Turnover = c.TurnoverCr * 1e7
		e.positions[c.Symbol] = p
		symbols = append(symbols, c.Symbol)
	}
	e.logger.Info("universe registered",
		zap.Int("added", len(symbols)),
		zap.Int("total", len(e.positions)))
	return symbols, nil
}

// Start 启动控制循环。
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already running")
	}
	e.logger.Info("ladder engine starting",
		zap.Int("ladders", len(e.positions)))
	go e.run(ctx)
	return nil
}

// Stop 停止引擎并等待控制循环退出。幂等。
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopChan)
	select {
	case <-e.doneChan:
	case <-time.After(10 * time.Second):
		e.logger.Warn("timeout waiting for engine loop")
	}
	e.logger.Info("ladder engine stopped",
		zap.Any("order_summary", e.ledger.Summary()))
}

// Running 引擎是否在运行。
func (e *Engine) Running() bool { return e.running.Load() }

// SetClock 注入时钟，模拟器与测试用。
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// TradingHalted 全局风控是否已触发。
func (e *Engine) TradingHalted() bool { return e.tradingHalted.Load() }

// run 控制循环：全局盈亏检查、收盘清算、指标与快照发布。
func (e *Engine) run(ctx context.Context) {
	defer close(e.doneChan)

	control := time.NewTicker(controlInterval)
	defer control.Stop()
	publish := time.NewTicker(publishInterval)
	defer publish.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("context done, engine loop exiting")
			return
		case <-e.stopChan:
			return
		case <-control.C:
			e.onControlTick()
		case <-publish.C:
			e.pub.Publish(e.Positions())
		}
	}
}

// onControlTick 每秒一次的全局检查。
func (e *Engine) onControlTick() {
	now := e.now()

	// 收盘后清算一次并停止新动作
	if afterMarketClose(now) && e.squaredOff.CompareAndSwap(false, true) {
		e.logger.Info("market closed, squaring off")
		e.SquareOffAll(position.StatusClosedEmergency, "market close")
		return
	}

	e.checkGlobalLimits()
	e.RunSelection()

	total, active := e.totals()
	metrics.GlobalPnL.Set(total)
	metrics.ActivePositions.Set(float64(active))

	if count, avg, max := e.tickLatency.Stats(); count > 0 {
		e.logger.Debug("tick latency window",
			zap.Int("samples", count),
			zap.Duration("avg", avg),
			zap.Duration("max", max))
	}
}

// checkGlobalLimits 全局止盈止损。触发后 halted 锁存，当日不再交易。
func (e *Engine) checkGlobalLimits() {
	if e.tradingHalted.Load() {
		return
	}
	s := e.Settings()
	total, _ := e.totals()

	switch {
	case s.GlobalProfitExit > 0 && total >= s.GlobalProfitExit:
		e.haltAndSquareOff("global profit target reached", total)
	case s.GlobalLossExit > 0 && total <= -s.GlobalLossExit:
		e.haltAndSquareOff("global loss limit breached", total)
	}
}

func (e *Engine) haltAndSquareOff(reason string, pnl float64) {
	e.tradingHalted.Store(true)
	e.logger.LogRisk("global_exit", map[string]interface{}{
		"reason": reason, "pnl": pnl,
	})
	if e.alertMgr != nil {
		e.alertMgr.Critical(reason, map[string]interface{}{"pnl": pnl})
	}
	e.SquareOffAll(position.StatusClosedEmergency, reason)
}

// RunSelection 立即执行一轮选股：在 idle 阶梯里按实时行情补足
// 多空目标数量并入场。控制循环每秒调用一次；模拟器可直接驱动。
// 会话启动名额用尽后整轮跳过。
func (e *Engine) RunSelection() {
	if !e.running.Load() || e.tradingHalted.Load() || e.squaredOff.Load() {
		return
	}
	if !withinMarketHours(e.now()) {
		return
	}
	s := e.Settings()
	if e.startedCount() >= s.MaxLadderStocks {
		return
	}

	snaps := e.Positions()
	var activeLong, activeShort int
	for _, sn := range snaps {
		if sn.Quantity <= 0 {
			continue
		}
		switch sn.Mode {
		case position.ModeLong:
			activeLong++
		case position.ModeShort:
			activeShort++
		}
	}

	for _, pick := range selectTopMovers(snaps, s, activeLong, activeShort) {
		e.mu.RLock()
		p, ok := e.positions[pick.Symbol]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		mode := position.ModeShort
		if pick.Long {
			mode = position.ModeLong
		}

		p.Lock()
		// 快照与入场之间状态可能已变，持锁重验
		if p.Status == position.StatusIdle && p.LastPrice > 0 {
			if e.enterLeg(p, mode, p.LastPrice) {
				e.logger.Info("ladder activated",
					zap.String("symbol", p.Symbol),
					zap.String("mode", string(mode)),
					zap.Float64("change_pct", p.ChangePct))
			}
		}
		p.Unlock()
	}
}

// sessionSlotBlocked 新 symbol 且会话启动名额已满时拒绝入场。
// 已启动过的 symbol（翻向、同标的再入场）不占新名额。
func (e *Engine) sessionSlotBlocked(symbol string) bool {
	max := e.Settings().MaxLadderStocks
	e.startedMu.Lock()
	defer e.startedMu.Unlock()
	return !e.started[symbol] && len(e.started) >= max
}

func (e *Engine) markStarted(symbol string) {
	e.startedMu.Lock()
	e.started[symbol] = true
	e.startedMu.Unlock()
}

func (e *Engine) startedCount() int {
	e.startedMu.Lock()
	defer e.startedMu.Unlock()
	return len(e.started)
}

// totals 全部阶梯的合计盈亏与活跃数。
func (e *Engine) totals() (total float64, active int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.positions {
		p.Lock()
		total += p.TotalPnL(p.LastPrice)
		if p.Status == position.StatusActive {
			active++
		}
		p.Unlock()
	}
	return total, active
}

// ProcessTick 行情回调。整个阶梯推进在持仓锁内完成，
// tick 间的串行性由行情流的单读循环保证。
func (e *Engine) ProcessTick(symbol string, ltp, volume float64) {
	start := time.Now()
	metrics.TicksProcessed.Inc()

	e.mu.RLock()
	p, ok := e.positions[symbol]
	e.mu.RUnlock()
	if !ok || ltp <= 0 {
		return
	}

	p.Lock()
	defer func() {
		p.Unlock()
		d := time.Since(start)
		e.tickLatency.Record(d)
		metrics.TickLatency.Observe(d.Seconds())
	}()

	p.Quote(ltp, volume)

	if !e.running.Load() || e.tradingHalted.Load() || e.squaredOff.Load() {
		return
	}
	if !withinMarketHours(e.now()) {
		return
	}
	// idle 阶梯只积累行情，入场由选股轮决定
	if p.Status != position.StatusActive {
		return
	}

	switch p.Mode {
	case position.ModeLong:
		e.processLongTick(p, ltp)
	case position.ModeShort:
		e.processShortTick(p, ltp)
	}
}

// SquareOffAll 以给定终态平掉全部持仓。idle 阶梯直接进终态。
func (e *Engine) SquareOffAll(status position.Status, reason string) {
	e.mu.RLock()
	positions := make([]*position.Position, 0, len(e.positions))
	for _, p := range e.positions {
		positions = append(positions, p)
	}
	e.mu.RUnlock()

	for _, p := range positions {
		p.Lock()
		if p.Status == position.StatusActive {
			e.closePosition(p, p.LastPrice, status, reason)
		} else if !p.Status.Terminal() {
			p.Status = status
			p.ClosedAt = e.now()
		}
		p.Unlock()
	}
	e.logger.Info("square off complete", zap.String("reason", reason))
}

// CloseSymbol 手动平掉单个标的。
func (e *Engine) CloseSymbol(symbol string) error {
	e.mu.RLock()
	p, ok := e.positions[symbol]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no ladder for %s", symbol)
	}

	p.Lock()
	defer p.Unlock()
	if p.Status.Terminal() {
		return nil
	}
	if p.Status == position.StatusActive {
		e.closePosition(p, p.LastPrice, position.StatusClosedManual, "manual close")
	} else {
		p.Status = position.StatusClosedManual
		p.ClosedAt = e.now()
	}
	return nil
}

// Symbols 已登记的全部 symbol。
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.positions))
	for sym := range e.positions {
		out = append(out, sym)
	}
	return out
}

// Positions 全部阶梯的快照。
func (e *Engine) Positions() []position.Snapshot {
	e.mu.RLock()
	positions := make([]*position.Position, 0, len(e.positions))
	for _, p := range e.positions {
		positions = append(positions, p)
	}
	e.mu.RUnlock()

	out := make([]position.Snapshot, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Snapshot())
	}
	return out
}

// Status 引擎状态摘要。
type Status struct {
	Connected     bool    `json:"connected"`
	Running       bool    `json:"running"`
	MarketOpen    bool    `json:"market_open"`
	TradingHalted bool    `json:"trading_halted"`
	Ladders       int     `json:"ladders"`
	Active        int     `json:"active"`
	TotalPnL      float64 `json:"total_pnl"`
}

// EngineStatus 当前状态摘要。
func (e *Engine) EngineStatus() Status {
	total, active := e.totals()
	e.mu.RLock()
	ladders := len(e.positions)
	e.mu.RUnlock()
	return Status{
		Connected:     e.broker.IsConnected(),
		Running:       e.running.Load(),
		MarketOpen:    withinMarketHours(e.now()),
		TradingHalted: e.tradingHalted.Load(),
		Ladders:       ladders,
		Active:        active,
		TotalPnL:      total,
	}
}
