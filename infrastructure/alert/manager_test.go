package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReachesAllChannels(t *testing.T) {
	a := NewMockChannel("a")
	b := NewMockChannel("b")
	m := NewManager([]Channel{a, b}, time.Minute)

	require.NoError(t, m.Critical("kill switch engaged", map[string]interface{}{"pnl": -8000.0}))

	assert.Equal(t, 1, a.Count())
	assert.Equal(t, 1, b.Count())
	assert.Equal(t, "CRITICAL", a.Alerts()[0].Level)
}

func TestThrottleSuppressesDuplicates(t *testing.T) {
	ch := NewMockChannel("a")
	m := NewManager([]Channel{ch}, time.Minute)

	require.NoError(t, m.Warning("feed reconnecting", nil))
	require.NoError(t, m.Warning("feed reconnecting", nil))
	assert.Equal(t, 1, ch.Count(), "duplicate within interval suppressed")

	// 不同消息不受影响
	require.NoError(t, m.Warning("feed abandoned", nil))
	assert.Equal(t, 2, ch.Count())

	m.ResetThrottle()
	require.NoError(t, m.Warning("feed reconnecting", nil))
	assert.Equal(t, 3, ch.Count())
}

func TestSendErrorOnlyWhenAllChannelsFail(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	good := NewMockChannel("good")

	m := NewManager([]Channel{bad, good}, time.Minute)
	assert.NoError(t, m.Info("one channel is enough", nil))

	m2 := NewManager([]Channel{bad}, time.Minute)
	assert.Error(t, m2.Info("all failed", nil))
}

func TestAddChannel(t *testing.T) {
	m := NewManager(nil, time.Minute)
	ch := NewMockChannel("late")
	m.AddChannel(ch)

	require.NoError(t, m.Info("hello", nil))
	assert.Equal(t, 1, ch.Count())
}
