package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-trader-go/infrastructure/logger"
)

// newFeedServer 假行情端：收下订阅请求后推送给定的二进制帧。
func newFeedServer(t *testing.T, frames [][]byte, gotSub chan<- subscribeRequest) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscribeRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if gotSub != nil {
			gotSub <- sub
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
				return
			}
		}
		// 挂住连接直到客户端关闭
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeDispatchesTicks(t *testing.T) {
	sm := parseSample(t)
	frames := [][]byte{
		BuildTickerPacket(2885, 2431.5),
		BuildQuotePacket(1594, 1520.25, 430000),
		{9, 9, 9}, // 坏包，丢弃
	}
	gotSub := make(chan subscribeRequest, 1)
	srv := newFeedServer(t, frames, gotSub)
	defer srv.Close()

	feed := NewMarketFeed(wsURL(srv), "client1234", "tok", sm, logger.NewNop())
	type tick struct {
		symbol string
		ltp    float64
	}
	ticks := make(chan tick, 8)
	require.NoError(t, feed.Subscribe([]string{"RELIANCE", "INFY", "UNKNOWN"}, func(symbol string, ltp, volume float64) {
		ticks <- tick{symbol, ltp}
	}))
	defer feed.Stop()

	sub := <-gotSub
	assert.Equal(t, 15, sub.RequestCode)
	assert.Equal(t, 2, sub.InstrumentCount, "unmapped symbol skipped")

	first := <-ticks
	assert.Equal(t, "RELIANCE", first.symbol)
	assert.InDelta(t, 2431.5, first.ltp, 0.01)

	second := <-ticks
	assert.Equal(t, "INFY", second.symbol)

	assert.Eventually(t, func() bool { return feed.TicksDropped() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestSubscribeRequiresHandler(t *testing.T) {
	sm := parseSample(t)
	feed := NewMarketFeed("ws://unused", "c", "t", sm, logger.NewNop())
	assert.Error(t, feed.Subscribe([]string{"RELIANCE"}, nil))
}

func TestSubscribeNoValidSymbols(t *testing.T) {
	sm := parseSample(t)
	feed := NewMarketFeed("ws://unused", "c", "t", sm, logger.NewNop())
	err := feed.Subscribe([]string{"NOPE"}, func(string, float64, float64) {})
	assert.Error(t, err)
}

func TestStopHaltsFeed(t *testing.T) {
	sm := parseSample(t)
	srv := newFeedServer(t, nil, nil)
	defer srv.Close()

	feed := NewMarketFeed(wsURL(srv), "c", "t", sm, logger.NewNop())
	require.NoError(t, feed.Subscribe([]string{"RELIANCE"}, func(string, float64, float64) {}))
	assert.True(t, feed.Running())

	feed.Stop()
	assert.False(t, feed.Running())
}

func TestReconnectGivesUpAndNotifies(t *testing.T) {
	sm := parseSample(t)
	// httptest 对 hijack 后的连接不再跟踪，srv.Close() 掐不断 websocket，
	// 这里自建服务端并显式关闭服务端连接来模拟断线。
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	feed := NewMarketFeed(wsURL(srv), "c", "t", sm, logger.NewNop())
	feed.MaxReconnects = 1
	feed.BaseDelay = 10 * time.Millisecond

	down := make(chan string, 1)
	feed.OnDown(func(reason string) { down <- reason })

	require.NoError(t, feed.Subscribe([]string{"RELIANCE"}, func(string, float64, float64) {}))
	srv.Close()      // 关掉监听，重连必然失败
	(<-conns).Close() // 掐断连接，触发重连后仍然失败

	select {
	case reason := <-down:
		assert.Contains(t, reason, "max reconnection attempts")
	case <-time.After(5 * time.Second):
		t.Fatal("OnDown not invoked")
	}
	assert.False(t, feed.Running())
}
