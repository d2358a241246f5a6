package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTickerPacket(t *testing.T) {
	raw := BuildTickerPacket(2885, 2431.5)
	tick, err := ParseTickPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, 2885, tick.SecurityID)
	assert.InDelta(t, 2431.5, tick.LTP, 0.01)
	assert.Equal(t, 0.0, tick.Volume)
}

func TestParseQuotePacket(t *testing.T) {
	raw := BuildQuotePacket(1594, 1520.25, 430000)
	tick, err := ParseTickPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, 1594, tick.SecurityID)
	assert.InDelta(t, 1520.25, tick.LTP, 0.01)
	assert.Equal(t, 430000.0, tick.Volume)
}

func TestParseTickPacketRejectsShort(t *testing.T) {
	_, err := ParseTickPacket([]byte{2, 0, 0})
	assert.Error(t, err)
}

func TestParseTickPacketRejectsUnknownCode(t *testing.T) {
	raw := BuildTickerPacket(2885, 100)
	raw[0] = 99
	_, err := ParseTickPacket(raw)
	assert.Error(t, err)
}

func TestParseTickPacketRejectsZeroPrice(t *testing.T) {
	raw := BuildTickerPacket(2885, 0)
	_, err := ParseTickPacket(raw)
	assert.Error(t, err)
}

func TestParseTickPacketRejectsZeroSecurityID(t *testing.T) {
	raw := BuildTickerPacket(0, 100)
	_, err := ParseTickPacket(raw)
	assert.Error(t, err)
}
