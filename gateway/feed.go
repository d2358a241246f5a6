package gateway

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ladder-trader-go/infrastructure/logger"
	"ladder-trader-go/metrics"
)

// TickHandler 接收 (symbol, ltp, volume)。回调在读循环 goroutine 上同步执行，
// 除了单笔 tick 的有界状态更新之外不得做阻塞工作。
type TickHandler func(symbol string, ltp, volume float64)

// MarketFeed 行情流生命周期：连接、tick 分发、错误、关闭后指数退避重连。
// 重连超过上限后放弃，标的失去行情直到显式重启。
type MarketFeed struct {
	URL         string
	ClientID    string
	AccessToken string
	Dialer      *websocket.Dialer

	MaxReconnects int
	BaseDelay     time.Duration

	scrip   *ScripMaster
	handler TickHandler
	onDown  func(reason string) // 重连放弃后的致命通知
	log     *logger.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	instruments []int
	running     atomic.Bool
	reconnects  int

	ticksDropped atomic.Int64
}

// NewMarketFeed 创建行情流。
func NewMarketFeed(url, clientID, accessToken string, scrip *ScripMaster, log *logger.Logger) *MarketFeed {
	return &MarketFeed{
		URL:           url,
		ClientID:      clientID,
		AccessToken:   accessToken,
		Dialer:        websocket.DefaultDialer,
		MaxReconnects: 10,
		BaseDelay:     5 * time.Second,
		scrip:         scrip,
		log:           log,
	}
}

// OnDown 注册放弃重连后的通知回调。
func (f *MarketFeed) OnDown(fn func(reason string)) {
	f.onDown = fn
}

type subscribeInstrument struct {
	ExchangeSegment string `json:"ExchangeSegment"`
	SecurityID      string `json:"SecurityId"`
}

type subscribeRequest struct {
	RequestCode     int                   `json:"RequestCode"`
	InstrumentCount int                   `json:"InstrumentCount"`
	InstrumentList  []subscribeInstrument `json:"InstrumentList"`
}

// Subscribe 解析 symbol→ID 并建立连接，读循环在独立 goroutine 上运行。
// 无法映射的 symbol 记警告后跳过，不中断订阅。
func (f *MarketFeed) Subscribe(symbols []string, handler TickHandler) error {
	if handler == nil {
		return fmt.Errorf("tick handler required")
	}
	ids := make([]int, 0, len(symbols))
	for _, s := range symbols {
		id, ok := f.scrip.SecurityID(s)
		if !ok {
			f.log.LogFeed("symbol_unmapped", map[string]interface{}{"symbol": s})
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no valid symbols to subscribe")
	}

	f.mu.Lock()
	f.handler = handler
	f.instruments = ids
	f.reconnects = 0
	f.mu.Unlock()

	if err := f.connect(); err != nil {
		return err
	}
	f.running.Store(true)
	go f.readLoop()
	return nil
}

func (f *MarketFeed) connect() error {
	url := fmt.Sprintf("%s?version=2&token=%s&clientId=%s&authType=2", f.URL, f.AccessToken, f.ClientID)
	conn, _, err := f.Dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	instruments := f.instruments
	f.mu.Unlock()

	// 每批最多 100 个 instrument
	const batch = 100
	for i := 0; i < len(instruments); i += batch {
		end := i + batch
		if end > len(instruments) {
			end = len(instruments)
		}
		req := subscribeRequest{RequestCode: 15}
		for _, id := range instruments[i:end] {
			req.InstrumentList = append(req.InstrumentList, subscribeInstrument{
				ExchangeSegment: "NSE_EQ",
				SecurityID:      fmt.Sprintf("%d", id),
			})
		}
		req.InstrumentCount = len(req.InstrumentList)
		if err := conn.WriteJSON(req); err != nil {
			conn.Close()
			return fmt.Errorf("send subscription: %w", err)
		}
	}
	f.log.LogFeed("feed_connected", map[string]interface{}{"instruments": len(instruments)})
	return nil
}

// readLoop 套接字读循环。决策逻辑的慢速不影响这里的阻塞读本身，
// 但 handler 契约要求除单笔状态更新外保持非阻塞。
func (f *MarketFeed) readLoop() {
	for f.running.Load() {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return
		}

		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if !f.running.Load() {
				return
			}
			f.log.LogFeed("feed_closed", map[string]interface{}{"error": err.Error()})
			f.handleReconnect()
			continue
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		f.dispatch(raw)
	}
}

// dispatch 解析并分发一个二进制帧；坏包丢弃并记日志，绝不上抛。
func (f *MarketFeed) dispatch(raw []byte) {
	tick, err := ParseTickPacket(raw)
	if err != nil {
		f.ticksDropped.Add(1)
		metrics.TicksDropped.Inc()
		f.log.Debug("tick dropped", zap.Error(err))
		return
	}
	symbol, ok := f.scrip.SymbolByID(tick.SecurityID)
	if !ok {
		f.ticksDropped.Add(1)
		metrics.TicksDropped.Inc()
		f.log.Debug("tick dropped: unmapped id", zap.Int("security_id", tick.SecurityID))
		return
	}
	// 同步调用以压低延迟
	f.handler(symbol, tick.LTP, tick.Volume)
}

// handleReconnect 指数退避重连：delay = base × 2^(attempts−1)，封顶 60s。
// 超过上限后放弃并触发 OnDown。
func (f *MarketFeed) handleReconnect() {
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.reconnects++
	attempt := f.reconnects
	max := f.MaxReconnects
	f.mu.Unlock()

	if attempt > max {
		f.running.Store(false)
		f.log.LogFeed("feed_abandoned", map[string]interface{}{"attempts": attempt - 1})
		if f.onDown != nil {
			f.onDown(fmt.Sprintf("max reconnection attempts reached (%d)", max))
		}
		return
	}

	metrics.FeedReconnects.Inc()
	delay := f.BaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	f.log.LogFeed("feed_reconnecting", map[string]interface{}{
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	})
	time.Sleep(delay)

	if !f.running.Load() {
		return
	}
	if err := f.connect(); err != nil {
		f.log.LogFeed("feed_reconnect_failed", map[string]interface{}{"error": err.Error()})
		f.handleReconnect()
		return
	}
	f.mu.Lock()
	f.reconnects = 0
	f.mu.Unlock()
}

// Stop 停止行情流。读循环观察到标志后退出。
func (f *MarketFeed) Stop() {
	f.running.Store(false)
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
	f.log.LogFeed("feed_stopped", nil)
}

// Running 行情流是否在运行。
func (f *MarketFeed) Running() bool { return f.running.Load() }

// TicksDropped 累计丢弃的坏包数量。
func (f *MarketFeed) TicksDropped() int64 { return f.ticksDropped.Load() }
