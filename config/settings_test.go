package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeClampsLosersFirst(t *testing.T) {
	s := DefaultSettings()
	s.MaxLadderStocks = 5
	s.TopNGainers = 3
	s.TopNLosers = 4

	n := s.Normalize()

	assert.Equal(t, 3, n.TopNGainers)
	assert.Equal(t, 2, n.TopNLosers)
	assert.Equal(t, 5, n.MaxLadderStocks)
}

func TestNormalizeGainersOverflow(t *testing.T) {
	s := DefaultSettings()
	s.MaxLadderStocks = 4
	s.TopNGainers = 7
	s.TopNLosers = 2

	n := s.Normalize()

	// 空头先削到 0，多头再收敛到上限
	assert.Equal(t, 4, n.TopNGainers)
	assert.Equal(t, 0, n.TopNLosers)
}

func TestNormalizeFloors(t *testing.T) {
	s := StrategySettings{MaxLadderStocks: 0, TopNGainers: -1, TopNLosers: -5, CyclesPerStock: 0}
	n := s.Normalize()
	assert.Equal(t, 1, n.MaxLadderStocks)
	assert.Equal(t, 0, n.TopNGainers)
	assert.Equal(t, 0, n.TopNLosers)
	assert.Equal(t, 1, n.CyclesPerStock)
}

func TestMultipliers(t *testing.T) {
	s := DefaultSettings()
	m := s.Multipliers()
	assert.InDelta(t, 0.005, m.AddOn, 1e-9)
	assert.InDelta(t, 0.005, m.InitSL, 1e-9)
	assert.InDelta(t, 0.005, m.Trailing, 1e-9)
	assert.InDelta(t, 0.02, m.Target, 1e-9)
}

func TestMinTurnover(t *testing.T) {
	s := StrategySettings{MinTurnoverCr: 2.5}
	assert.Equal(t, 2.5e7, s.MinTurnover())
}
