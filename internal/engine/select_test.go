package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ladder-trader-go/config"
	"ladder-trader-go/position"
)

// idleSnap 一条可入选的 idle 阶梯快照，缺口与涨跌幅同值。
func idleSnap(symbol string, changePct, turnoverCr float64) position.Snapshot {
	return position.Snapshot{
		Symbol:     symbol,
		Status:     position.StatusIdle,
		LastPrice:  100 * (1 + changePct/100),
		ChangePct:  changePct,
		OpenGapPct: changePct,
		Turnover:   turnoverCr * 1e7,
	}
}

func TestSelectExcludesWideGapFromLongs(t *testing.T) {
	s := config.DefaultSettings() // maxOpenGapLong 3.0

	picks := selectTopMovers([]position.Snapshot{
		idleSnap("WIDEGAP", 5.0, 10), // +5% 跳空，永不做多
		idleSnap("OKGAIN", 2.0, 10),
	}, s, 0, 0)

	for _, p := range picks {
		assert.NotEqual(t, "WIDEGAP", p.Symbol)
	}
	assert.Len(t, picks, 1)
	assert.True(t, picks[0].Long)
}

func TestSelectExcludesDeepGapFromShorts(t *testing.T) {
	s := config.DefaultSettings() // minOpenGapShort -3.0

	picks := selectTopMovers([]position.Snapshot{
		idleSnap("DEEPGAP", -5.0, 10),
		idleSnap("OKLOSS", -2.0, 10),
	}, s, 0, 0)

	assert.Len(t, picks, 1)
	assert.Equal(t, "OKLOSS", picks[0].Symbol)
	assert.False(t, picks[0].Long)
}

func TestSelectTurnoverFloor(t *testing.T) {
	s := config.DefaultSettings() // minTurnoverCr 1.0

	picks := selectTopMovers([]position.Snapshot{
		idleSnap("THIN", 2.0, 0.5),
		idleSnap("LIQUID", 2.0, 5),
	}, s, 0, 0)

	assert.Len(t, picks, 1)
	assert.Equal(t, "LIQUID", picks[0].Symbol)
}

func TestSelectSkipsNonIdleAndUnpriced(t *testing.T) {
	s := config.DefaultSettings()

	active := idleSnap("ACTIVE", 2.0, 10)
	active.Status = position.StatusActive
	closed := idleSnap("CLOSED", 2.2, 10)
	closed.Status = position.StatusClosedProfit
	noTick := idleSnap("NOTICK", 2.4, 10)
	noTick.LastPrice = 0

	picks := selectTopMovers([]position.Snapshot{
		active, closed, noTick, idleSnap("FRESH", 1.0, 10),
	}, s, 0, 0)

	assert.Len(t, picks, 1)
	assert.Equal(t, "FRESH", picks[0].Symbol)
}

func TestSelectCapsAtTopN(t *testing.T) {
	s := config.DefaultSettings() // topNGainers 10
	var snaps []position.Snapshot
	for i := 0; i < 60; i++ {
		snaps = append(snaps, idleSnap(fmt.Sprintf("G%02d", i), 1.0+float64(i%20)*0.1, 10))
	}

	picks := selectTopMovers(snaps, s, 0, 0)
	assert.Len(t, picks, 10)
}

func TestSelectNeedDiscountsActiveCounts(t *testing.T) {
	s := config.DefaultSettings()
	s.TopNGainers = 3
	s.TopNLosers = 2

	// 已有 2 多 1 空：只需补 1 多 1 空
	picks := selectTopMovers([]position.Snapshot{
		idleSnap("G1", 2.0, 10), idleSnap("G2", 1.5, 10),
		idleSnap("L1", -2.0, 10), idleSnap("L2", -1.5, 10),
	}, s, 2, 1)

	var longs, shorts int
	for _, p := range picks {
		if p.Long {
			longs++
		} else {
			shorts++
		}
	}
	assert.Equal(t, 1, longs)
	assert.Equal(t, 1, shorts)
}

func TestSelectSortsByChange(t *testing.T) {
	s := config.DefaultSettings()
	s.TopNGainers = 2
	s.TopNLosers = 0

	picks := selectTopMovers([]position.Snapshot{
		idleSnap("SMALL", 0.5, 10),
		idleSnap("BIG", 2.5, 10),
		idleSnap("MID", 1.5, 10),
	}, s, 0, 0)

	assert.Len(t, picks, 2)
	assert.Equal(t, "BIG", picks[0].Symbol)
	assert.Equal(t, "MID", picks[1].Symbol)
}

func TestSelectLongsPriorityUnderCapacity(t *testing.T) {
	s := config.DefaultSettings()
	s.MaxLadderStocks = 4
	s.TopNGainers = 3
	s.TopNLosers = 1 // normalize 约束下的合法组合

	picks := selectTopMovers([]position.Snapshot{
		idleSnap("G1", 2.0, 10), idleSnap("G2", 1.8, 10), idleSnap("G3", 1.5, 10),
		idleSnap("L1", -2.0, 10), idleSnap("L2", -1.8, 10), idleSnap("L3", -1.5, 10),
	}, s, 0, 0)

	var longs, shorts int
	for _, p := range picks {
		if p.Long {
			longs++
		} else {
			shorts++
		}
	}
	assert.Equal(t, 3, longs, "longs filled first")
	assert.Equal(t, 1, shorts)
}

func TestSelectNoCapacityLeft(t *testing.T) {
	s := config.DefaultSettings()
	s.MaxLadderStocks = 2

	picks := selectTopMovers([]position.Snapshot{idleSnap("A", 2.0, 10)}, s, 1, 1)
	assert.Empty(t, picks)
}
