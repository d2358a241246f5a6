package metrics

import (
	"sync"
	"time"
)

// LatencyTracker 滑动窗口延迟统计，供运行时自检日志使用。
// Prometheus histogram 负责对外导出，这里保留进程内的均值/最大值。
type LatencyTracker struct {
	mu      sync.Mutex
	window  int
	samples []time.Duration
	next    int
	filled  bool
}

// NewLatencyTracker 创建窗口大小为 window 的跟踪器。
func NewLatencyTracker(window int) *LatencyTracker {
	if window < 1 {
		window = 1
	}
	return &LatencyTracker{
		window:  window,
		samples: make([]time.Duration, window),
	}
}

// Record 记录一个样本，窗口满后环形覆盖最旧的。
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	t.samples[t.next] = d
	t.next++
	if t.next == t.window {
		t.next = 0
		t.filled = true
	}
	t.mu.Unlock()
}

// Stats 返回当前窗口的样本数、均值与最大值。
func (t *LatencyTracker) Stats() (count int, avg, max time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count = t.next
	if t.filled {
		count = t.window
	}
	if count == 0 {
		return 0, 0, 0
	}
	var sum time.Duration
	for i := 0; i < count; i++ {
		s := t.samples[i]
		sum += s
		if s > max {
			max = s
		}
	}
	return count, sum / time.Duration(count), max
}
