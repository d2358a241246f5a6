package config

// StrategySettings 策略参数（进程级单份记录，整体替换，读多写少）。
type StrategySettings struct {
	// 加仓阶梯
	NoOfAddOns          int     `yaml:"noOfAddOns"`          // 最大加仓次数
	AddOnPct            float64 `yaml:"addOnPct"`            // 触发加仓的涨/跌幅（%）
	InitialStopLossPct  float64 `yaml:"initialStopLossPct"`  // 初始止损（%）
	TrailingStopLossPct float64 `yaml:"trailingStopLossPct"` // 跟踪止损（%）
	TargetPct           float64 `yaml:"targetPct"`           // 止盈目标（%）

	// 选股与容量
	MaxLadderStocks  int     `yaml:"maxLadderStocks"`  // 会话内最多启动的不同标的数
	TopNGainers      int     `yaml:"topNGainers"`      // 目标多头数量
	TopNLosers       int     `yaml:"topNLosers"`       // 目标空头数量
	MinTurnoverCr    float64 `yaml:"minTurnoverCr"`    // 最低成交额（千万卢比）
	MaxOpenGapLong   float64 `yaml:"maxOpenGapLong"`   // 多头允许的最大开盘跳空（%）
	MinOpenGapShort  float64 `yaml:"minOpenGapShort"`  // 空头允许的最小开盘跳空（%，负数）
	CyclesPerStock   int     `yaml:"cyclesPerStock"`   // 单标的双向翻转总周期数
	TradeCapital     float64 `yaml:"tradeCapital"`     // 单次下单资金
	MaxPnLPerStock   float64 `yaml:"maxPnlPerStock"`   // 单标的绝对盈亏上限，触发强平
	GlobalProfitExit float64 `yaml:"globalProfitExit"` // 全局止盈（0 不启用）
	GlobalLossExit   float64 `yaml:"globalLossExit"`   // 全局止损（0 不启用）
}

// DefaultSettings 返回与原始运行参数一致的默认值。
func DefaultSettings() StrategySettings {
	return StrategySettings{
		NoOfAddOns:          5,
		AddOnPct:            0.5,
		InitialStopLossPct:  0.5,
		TrailingStopLossPct: 0.5,
		TargetPct:           2.0,
		MaxLadderStocks:     20,
		TopNGainers:         10,
		TopNLosers:          10,
		MinTurnoverCr:       1.0,
		MaxOpenGapLong:      3.0,
		MinOpenGapShort:     -3.0,
		CyclesPerStock:      3,
		TradeCapital:        1000.0,
		MaxPnLPerStock:      5000.0,
	}
}

// Normalize 收敛非法组合：topNGainers+topNLosers 不得超过 maxLadderStocks，
// 冲突时优先保留多头名额，先削减空头。任何更新路径都必须先过这里。
func (s StrategySettings) Normalize() StrategySettings {
	if s.MaxLadderStocks < 1 {
		s.MaxLadderStocks = 1
	}
	if s.TopNGainers < 0 {
		s.TopNGainers = 0
	}
	if s.TopNLosers < 0 {
		s.TopNLosers = 0
	}
	if s.TopNGainers+s.TopNLosers > s.MaxLadderStocks {
		s.TopNLosers = s.MaxLadderStocks - s.TopNGainers
		if s.TopNLosers < 0 {
			s.TopNLosers = 0
		}
		if s.TopNGainers > s.MaxLadderStocks {
			s.TopNGainers = s.MaxLadderStocks
		}
	}
	if s.NoOfAddOns < 0 {
		s.NoOfAddOns = 0
	}
	if s.CyclesPerStock < 1 {
		s.CyclesPerStock = 1
	}
	return s
}

// 预计算的百分比乘数，避免每个 tick 重复除法。
type Multipliers struct {
	AddOn    float64
	InitSL   float64
	Trailing float64
	Target   float64
}

// Multipliers 把百分比参数换算成乘数。
func (s StrategySettings) Multipliers() Multipliers {
	return Multipliers{
		AddOn:    s.AddOnPct / 100,
		InitSL:   s.InitialStopLossPct / 100,
		Trailing: s.TrailingStopLossPct / 100,
		Target:   s.TargetPct / 100,
	}
}

// MinTurnover 返回以卢比计的最低成交额（1 Cr = 1e7）。
func (s StrategySettings) MinTurnover() float64 {
	return s.MinTurnoverCr * 1e7
}
