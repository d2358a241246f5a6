package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireConsumesToken(t *testing.T) {
	l := NewRateLimiter(10, 2)
	assert.True(t, l.Acquire())
}

func TestAcquireFailsAfterMaxRetries(t *testing.T) {
	l := NewRateLimiter(1, 2)
	// 不真正睡眠，令牌也不会补充
	l.sleep = func(time.Duration) {}
	l.mu.Lock()
	l.tokens = 0
	l.last = time.Now().Add(time.Hour) // elapsed 为负，不补充令牌
	l.mu.Unlock()

	assert.False(t, l.Acquire())
}

func TestConnectionSlotsBound(t *testing.T) {
	l := NewRateLimiter(100, 2)
	l.AcquireConnection()
	l.AcquireConnection()
	assert.Equal(t, 2, l.ActiveConnections())

	released := make(chan struct{})
	go func() {
		l.AcquireConnection() // 满，阻塞直到释放
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("third slot should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	l.ReleaseConnection()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("slot not granted after release")
	}
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	l := NewRateLimiter(1, 1)
	l.ReleaseConnection()
	assert.Equal(t, 0, l.ActiveConnections())
}

func TestConnectionSlotsConcurrent(t *testing.T) {
	l := NewRateLimiter(1000, 3)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.AcquireConnection()
			defer l.ReleaseConnection()
			if n := l.ActiveConnections(); n > 3 {
				t.Errorf("active connections %d exceeds cap", n)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, l.ActiveConnections())
}
