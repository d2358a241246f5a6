package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyTrackerEmpty(t *testing.T) {
	tr := NewLatencyTracker(10)
	count, avg, max := tr.Stats()
	assert.Equal(t, 0, count)
	assert.Equal(t, time.Duration(0), avg)
	assert.Equal(t, time.Duration(0), max)
}

func TestLatencyTrackerStats(t *testing.T) {
	tr := NewLatencyTracker(10)
	tr.Record(10 * time.Millisecond)
	tr.Record(20 * time.Millisecond)
	tr.Record(30 * time.Millisecond)

	count, avg, max := tr.Stats()
	assert.Equal(t, 3, count)
	assert.Equal(t, 20*time.Millisecond, avg)
	assert.Equal(t, 30*time.Millisecond, max)
}

func TestLatencyTrackerWindowWraps(t *testing.T) {
	tr := NewLatencyTracker(3)
	for _, d := range []time.Duration{1, 2, 3, 100} {
		tr.Record(d * time.Millisecond)
	}

	// 窗口 3：最旧的 1ms 被 100ms 覆盖
	count, _, max := tr.Stats()
	assert.Equal(t, 3, count)
	assert.Equal(t, 100*time.Millisecond, max)
}
