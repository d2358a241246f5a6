package engine

import (
	"time"

	"go.uber.org/zap"

	"ladder-trader-go/metrics"
	"ladder-trader-go/order"
	"ladder-trader-go/position"
)

// 本文件是单标的阶梯状态机的推进逻辑。
// 所有方法都要求调用方已持有该持仓的锁。

// enterLeg 开一条腿：下入场单并初始化加仓/止损/止盈价位。
// mode 只在下单成功后写入，失败的入场不消耗会话名额、阶梯保持 idle。
func (e *Engine) enterLeg(p *position.Position, mode position.Mode, ltp float64) bool {
	if e.sessionSlotBlocked(p.Symbol) {
		e.logger.Info("skip entry: session ladder cap reached",
			zap.String("symbol", p.Symbol))
		return false
	}

	s := e.Settings()
	qty := position.QuantityFor(s.TradeCapital, ltp)
	if qty == 0 {
		return false
	}

	side := order.SideBuy
	if mode == position.ModeShort {
		side = order.SideSell
	}
	if !e.placeLadderOrder(p, side, order.KindEntry, qty, ltp) {
		return false
	}
	e.markStarted(p.Symbol)

	m := s.Multipliers()
	p.Mode = mode
	p.EntryPrice = ltp
	p.Quantity = e.ledger.TotalFilledQuantity(p.Symbol, side)
	p.AvgEntryPrice = e.ledger.AverageEntryPrice(p.Symbol, side)
	p.LadderLevel = 1
	p.HighWatermark = ltp
	if mode == position.ModeLong {
		p.NextAddOn = ltp * (1 + m.AddOn)
		p.StopLoss = ltp * (1 - m.InitSL)
		p.Target = ltp * (1 + m.Target)
	} else {
		p.NextAddOn = ltp * (1 - m.AddOn)
		p.StopLoss = ltp * (1 + m.InitSL)
		p.Target = ltp * (1 - m.Target)
	}
	p.Status = position.StatusActive
	p.StartedAt = e.now()

	e.logger.Info("leg entered",
		zap.String("symbol", p.Symbol),
		zap.String("mode", string(mode)),
		zap.Int("cycle", p.CycleIndex),
		zap.Int("quantity", p.Quantity),
		zap.Float64("entry", ltp),
		zap.Float64("stop_loss", p.StopLoss),
		zap.Float64("target", p.Target))
	return true
}

// processLongTick 推进多头阶梯。
func (e *Engine) processLongTick(p *position.Position, ltp float64) {
	s := e.Settings()
	m := s.Multipliers()

	p.UpdateWatermark(ltp)
	p.TrailStop(m.Trailing)

	// 单标的绝对盈亏上限
	if s.MaxPnLPerStock > 0 && abs(p.TotalPnL(ltp)) >= s.MaxPnLPerStock {
		e.closePosition(p, ltp, position.StatusClosedGlobalLimit, "per-stock pnl cap")
		return
	}

	switch {
	case ltp >= p.Target:
		e.closePosition(p, ltp, position.StatusClosedProfit, "target reached")

	case ltp <= p.StopLoss:
		e.stopOutAndMaybeFlip(p, ltp)

	case p.LadderLevel < s.NoOfAddOns && ltp >= p.NextAddOn:
		e.executeAddOn(p, ltp)
	}
}

// processShortTick 推进空头阶梯，镜像多头。
func (e *Engine) processShortTick(p *position.Position, ltp float64) {
	s := e.Settings()
	m := s.Multipliers()

	p.UpdateWatermark(ltp)
	p.TrailStop(m.Trailing)

	if s.MaxPnLPerStock > 0 && abs(p.TotalPnL(ltp)) >= s.MaxPnLPerStock {
		e.closePosition(p, ltp, position.StatusClosedGlobalLimit, "per-stock pnl cap")
		return
	}

	switch {
	case ltp <= p.Target:
		e.closePosition(p, ltp, position.StatusClosedProfit, "target reached")

	case ltp >= p.StopLoss:
		e.stopOutAndMaybeFlip(p, ltp)

	case p.LadderLevel < s.NoOfAddOns && ltp <= p.NextAddOn:
		e.executeAddOn(p, ltp)
	}
}

// executeAddOn 价格推进到触发价时加一层仓。数量按本腿入场价计算。
func (e *Engine) executeAddOn(p *position.Position, ltp float64) {
	s := e.Settings()
	m := s.Multipliers()

	qty := position.QuantityFor(s.TradeCapital, p.EntryPrice)
	if qty == 0 {
		return
	}
	side := order.SideBuy
	if p.Mode == position.ModeShort {
		side = order.SideSell
	}
	if !e.placeLadderOrder(p, side, order.KindAddOn, qty, ltp) {
		return
	}

	p.LadderLevel++
	p.Quantity = e.ledger.TotalFilledQuantity(p.Symbol, side)
	p.AvgEntryPrice = e.ledger.AverageEntryPrice(p.Symbol, side)
	if p.Mode == position.ModeLong {
		p.NextAddOn = ltp * (1 + m.AddOn)
	} else {
		p.NextAddOn = ltp * (1 - m.AddOn)
	}

	e.logger.Info("add-on executed",
		zap.String("symbol", p.Symbol),
		zap.Int("ladder_level", p.LadderLevel),
		zap.Int("quantity", p.Quantity),
		zap.Float64("avg_entry", p.AvgEntryPrice),
		zap.Float64("next_add_on", p.NextAddOn))
}

// stopOutAndMaybeFlip 止损出场；周期预算未用尽时立刻反向入场。
func (e *Engine) stopOutAndMaybeFlip(p *position.Position, ltp float64) {
	if p.CyclesExhausted() {
		e.closePosition(p, ltp, position.StatusStopped, "stop loss, cycles exhausted")
		return
	}

	next := position.ModeShort
	if p.Mode == position.ModeShort {
		next = position.ModeLong
	}
	e.closeLeg(p, ltp, "stop loss, flipping")
	p.CycleIndex++
	if !e.enterLeg(p, next, ltp) {
		p.Status = position.StatusStopped
		p.ClosedAt = e.now()
		e.logger.Error("flip entry failed, ladder stopped",
			zap.String("symbol", p.Symbol))
	}
}

// closeLeg 平掉当前腿并结转已实现盈亏，mode 归零、不改终态。
// 平仓单重试耗尽仍失败时照常结转并告警，等待人工处理。
func (e *Engine) closeLeg(p *position.Position, ltp float64, reason string) {
	if p.Quantity <= 0 {
		return
	}
	exitSide := order.SideSell
	if p.Mode == position.ModeShort {
		exitSide = order.SideBuy
	}
	if !e.placeLadderOrder(p, exitSide, order.KindExit, p.Quantity, ltp) {
		e.logger.Error("exit order failed",
			zap.String("symbol", p.Symbol),
			zap.Int("quantity", p.Quantity))
		if e.alertMgr != nil {
			e.alertMgr.Critical("exit order failed, manual intervention required",
				map[string]interface{}{"symbol": p.Symbol, "quantity": p.Quantity})
		}
	}

	var pnl float64
	if p.Mode == position.ModeLong {
		pnl = (ltp - p.AvgEntryPrice) * float64(p.Quantity)
	} else {
		pnl = (p.AvgEntryPrice - ltp) * float64(p.Quantity)
	}
	p.RealizedPnL += pnl
	p.Quantity = 0
	p.Mode = position.ModeNone
	e.ledger.ClearSymbol(p.Symbol)

	e.logger.Info("leg closed",
		zap.String("symbol", p.Symbol),
		zap.String("reason", reason),
		zap.Float64("exit", ltp),
		zap.Float64("leg_pnl", pnl),
		zap.Float64("realized_pnl", p.RealizedPnL))
}

// closePosition 平仓并进入终态。
func (e *Engine) closePosition(p *position.Position, ltp float64, status position.Status, reason string) {
	e.closeLeg(p, ltp, reason)
	p.Status = status
	p.ClosedAt = e.now()
}

// placeLadderOrder 登记订单并带重试地提交到券商。
// 市价单按当前 LTP 记账；失败先记 REJECTED 与拒单原因，再看重试预算。
func (e *Engine) placeLadderOrder(p *position.Position, side order.Side, kind order.Kind, qty int, price float64) bool {
	o := e.ledger.Create(p.Symbol, side, kind, qty, price)

	for {
		start := time.Now()
		res, err := e.broker.PlaceOrder(p.Symbol, string(side), qty, "MARKET")
		metrics.OrderLatency.Observe(time.Since(start).Seconds())

		if err != nil || res.Failed() {
			metrics.APIErrors.Inc()
			metrics.OrdersPlaced.WithLabelValues(string(side), "failed").Inc()
			reason := res.Message
			if err != nil {
				reason = err.Error()
				e.logger.LogError(err, map[string]interface{}{
					"op": "place_order", "symbol": p.Symbol,
				})
			} else {
				e.logger.Warn("order rejected by broker",
					zap.String("symbol", p.Symbol),
					zap.String("message", res.Message))
			}
			e.ledger.UpdateStatus(o.ID, order.StatusRejected, 0, 0, reason)
			if e.ledger.ShouldRetry(o.ID) {
				e.ledger.MarkRetry(o.ID)
				continue
			}
			return false
		}

		id := o.ID
		if res.OrderID != "" {
			if err := e.ledger.ReplaceID(id, res.OrderID); err == nil {
				id = res.OrderID
			}
		}
		e.ledger.UpdateStatus(id, order.StatusExecuted, price, qty, "")
		metrics.OrdersPlaced.WithLabelValues(string(side), "success").Inc()
		return true
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
