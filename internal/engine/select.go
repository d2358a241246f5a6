package engine

import (
	"sort"

	"ladder-trader-go/config"
	"ladder-trader-go/position"
)

// Pick 选股结果：symbol 加方向。
type Pick struct {
	Symbol string
	Long   bool
}

// selectTopMovers 每个控制周期跑一轮的选股：在 idle 阶梯里按实时行情
// 过滤成交额与开盘跳空，涨幅榜补多头、跌幅榜补空头。
// 需求量 = 目标数量 − 当前活跃数量，剩余容量不足时优先保多头。
func selectTopMovers(snaps []position.Snapshot, s config.StrategySettings, activeLong, activeShort int) []Pick {
	activeTotal := activeLong + activeShort
	if activeTotal >= s.MaxLadderStocks {
		return nil
	}

	needLongs := s.TopNGainers - activeLong
	if needLongs < 0 {
		needLongs = 0
	}
	needShorts := s.TopNLosers - activeShort
	if needShorts < 0 {
		needShorts = 0
	}

	remaining := s.MaxLadderStocks - activeTotal
	if needLongs+needShorts > remaining {
		if needLongs > remaining {
			needLongs = remaining
		}
		needShorts = remaining - needLongs
	}
	if needLongs == 0 && needShorts == 0 {
		return nil
	}

	var gainers, losers []position.Snapshot
	minTurnover := s.MinTurnover()
	for _, sn := range snaps {
		if sn.Status != position.StatusIdle || sn.LastPrice <= 0 {
			continue
		}
		if sn.Turnover < minTurnover {
			continue
		}
		switch {
		case sn.ChangePct > 0:
			// 跳空过大不追多
			if sn.OpenGapPct <= s.MaxOpenGapLong {
				gainers = append(gainers, sn)
			}
		case sn.ChangePct < 0:
			// 跳空过深不追空
			if sn.OpenGapPct >= s.MinOpenGapShort {
				losers = append(losers, sn)
			}
		}
	}

	sort.Slice(gainers, func(i, j int) bool { return gainers[i].ChangePct > gainers[j].ChangePct })
	sort.Slice(losers, func(i, j int) bool { return losers[i].ChangePct < losers[j].ChangePct })

	if needLongs > len(gainers) {
		needLongs = len(gainers)
	}
	if needShorts > len(losers) {
		needShorts = len(losers)
	}

	picks := make([]Pick, 0, needLongs+needShorts)
	for _, sn := range gainers[:needLongs] {
		picks = append(picks, Pick{Symbol: sn.Symbol, Long: true})
	}
	for _, sn := range losers[:needShorts] {
		picks = append(picks, Pick{Symbol: sn.Symbol, Long: false})
	}
	return picks
}
