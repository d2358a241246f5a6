package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"ladder-trader-go/infrastructure/logger"
)

// OrderResult 下单的结构化结果；边界上不暴露内部堆栈。
type OrderResult struct {
	Status  string // success / failure
	OrderID string
	Message string
}

// Failed 判断下单是否失败。
func (r OrderResult) Failed() bool { return r.Status == "failure" }

// Bar 单日 K 线。
type Bar struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// BrokerPosition 券商侧持仓（透传给上层）。
type BrokerPosition struct {
	Symbol       string  `json:"tradingSymbol"`
	NetQty       int     `json:"netQty"`
	BuyAvg       float64 `json:"buyAvg"`
	SellAvg      float64 `json:"sellAvg"`
	RealizedPnL  float64 `json:"realizedProfit"`
	UnrealizedPL float64 `json:"unrealizedProfit"`
}

// Client Dhan REST 客户端。HTTPClient 可注入 httptest。
// 非法会话在 Connect 阶段即失败，属于会话级致命错误，不自动重试登录。
type Client struct {
	BaseURL     string
	ClientID    string
	AccessToken string
	HTTPClient  *http.Client
	Limiter     *RateLimiter

	scrip     *ScripMaster
	log       *logger.Logger
	mu        sync.RWMutex
	connected bool
}

// NewClient 创建客户端。
func NewClient(baseURL, clientID, accessToken string, limiter *RateLimiter, log *logger.Logger) *Client {
	return &Client{
		BaseURL:     baseURL,
		ClientID:    clientID,
		AccessToken: accessToken,
		HTTPClient:  NewDefaultHTTPClient(),
		Limiter:     limiter,
		log:         log,
	}
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// Connect 校验会话（拉一次资金额度）并加载证券主档。
func (c *Client) Connect(scripURL string) error {
	if c.ClientID == "" || c.AccessToken == "" {
		return fmt.Errorf("credentials required")
	}
	if _, err := c.FundLimits(); err != nil {
		c.setConnected(false)
		return fmt.Errorf("verify session: %w", err)
	}
	sm, err := FetchScripMaster(scripURL, c.HTTPClient, c.log)
	if err != nil {
		c.setConnected(false)
		return fmt.Errorf("load scrip master: %w", err)
	}
	c.mu.Lock()
	c.scrip = sm
	c.connected = true
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("broker session connected", zap.String("client_id", maskID(c.ClientID)))
	}
	return nil
}

// IsConnected 会话是否可用。
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Scrip 返回已加载的证券主档。
func (c *Client) Scrip() *ScripMaster {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scrip
}

// FundLimits 拉取资金额度，同时充当会话探活。
func (c *Client) FundLimits() (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.doJSON(http.MethodGet, "/v2/fundlimit", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type placeOrderRequest struct {
	DhanClientID    string  `json:"dhanClientId"`
	TransactionType string  `json:"transactionType"`
	ExchangeSegment string  `json:"exchangeSegment"`
	ProductType     string  `json:"productType"`
	OrderType       string  `json:"orderType"`
	SecurityID      string  `json:"securityId"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
}

type placeOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
	ErrorCode   string `json:"errorCode"`
	ErrorMsg    string `json:"errorMessage"`
}

// PlaceOrder 下市价/限价单。瞬时失败返回 failure 结果而非 error，
// 只有传输层/会话层问题才返回 error。
func (c *Client) PlaceOrder(symbol, side string, qty int, orderType string) (OrderResult, error) {
	if !c.IsConnected() {
		return OrderResult{Status: "failure", Message: "not connected"}, fmt.Errorf("not connected")
	}
	id, ok := c.Scrip().SecurityID(symbol)
	if !ok {
		return OrderResult{Status: "failure", Message: "security id not found"},
			fmt.Errorf("security id not found for %s", symbol)
	}

	start := time.Now()
	req := placeOrderRequest{
		DhanClientID:    c.ClientID,
		TransactionType: side,
		ExchangeSegment: "NSE_EQ",
		ProductType:     "INTRADAY",
		OrderType:       orderType,
		SecurityID:      fmt.Sprintf("%d", id),
		Quantity:        qty,
	}
	var resp placeOrderResponse
	if err := c.doJSON(http.MethodPost, "/v2/orders", req, &resp); err != nil {
		return OrderResult{Status: "failure", Message: err.Error()}, err
	}
	if resp.OrderStatus == "REJECTED" || resp.ErrorCode != "" {
		msg := resp.ErrorMsg
		if msg == "" {
			msg = "order rejected"
		}
		return OrderResult{Status: "failure", OrderID: resp.OrderID, Message: msg}, nil
	}
	if c.log != nil {
		c.log.LogOrder("order_placed", resp.OrderID, map[string]interface{}{
			"symbol":     symbol,
			"side":       side,
			"qty":        qty,
			"latency_ms": float64(time.Since(start).Microseconds()) / 1000,
		})
	}
	return OrderResult{Status: "success", OrderID: resp.OrderID}, nil
}

type historicalRequest struct {
	SecurityID      string `json:"securityId"`
	ExchangeSegment string `json:"exchangeSegment"`
	Instrument      string `json:"instrument"`
	FromDate        string `json:"fromDate"`
	ToDate          string `json:"toDate"`
}

type historicalResponse struct {
	Open      []float64 `json:"open"`
	High      []float64 `json:"high"`
	Low       []float64 `json:"low"`
	Close     []float64 `json:"close"`
	Volume    []float64 `json:"volume"`
	Timestamp []int64   `json:"timestamp"`
}

// HistoricalDailyBars 拉取最近 days 天的日线。经过 4.1 的令牌+连接槽位闸门；
// 令牌耗尽时跳过并返回错误，不无限阻塞。
func (c *Client) HistoricalDailyBars(symbol string, days int) ([]Bar, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}
	if c.Limiter != nil {
		if !c.Limiter.Acquire() {
			return nil, fmt.Errorf("rate limit exceeded for %s, skipping", symbol)
		}
		c.Limiter.AcquireConnection()
		defer c.Limiter.ReleaseConnection()
	}

	id, ok := c.Scrip().SecurityID(symbol)
	if !ok {
		return nil, fmt.Errorf("security id not found for %s", symbol)
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)
	req := historicalRequest{
		SecurityID:      fmt.Sprintf("%d", id),
		ExchangeSegment: "NSE_EQ",
		Instrument:      "EQUITY",
		FromDate:        start.Format("2006-01-02"),
		ToDate:          end.Format("2006-01-02"),
	}
	var resp historicalResponse
	if err := c.doJSON(http.MethodPost, "/v2/charts/historical", req, &resp); err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(resp.Close))
	for i := range resp.Close {
		b := Bar{Close: resp.Close[i]}
		if i < len(resp.Open) {
			b.Open = resp.Open[i]
		}
		if i < len(resp.High) {
			b.High = resp.High[i]
		}
		if i < len(resp.Low) {
			b.Low = resp.Low[i]
		}
		if i < len(resp.Volume) {
			b.Volume = resp.Volume[i]
		}
		if i < len(resp.Timestamp) {
			b.Date = time.Unix(resp.Timestamp[i], 0).Format("2006-01-02")
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// Positions 拉取券商侧持仓快照。
func (c *Client) Positions() ([]BrokerPosition, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}
	var out []BrokerPosition
	if err := c.doJSON(http.MethodGet, "/v2/positions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SquareOffPosition 用反向市价单平掉指定数量。
func (c *Client) SquareOffPosition(symbol string, qty int, side string) (OrderResult, error) {
	opposite := "SELL"
	if side == "SELL" {
		opposite = "BUY"
	}
	return c.PlaceOrder(symbol, opposite, qty, "MARKET")
}

func (c *Client) doJSON(method, path string, body, out interface{}) error {
	if c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	var buf *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		buf = bytes.NewBuffer(raw)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access-token", c.AccessToken)
	req.Header.Set("client-id", c.ClientID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.setConnected(false)
		return fmt.Errorf("session invalid: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func maskID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:4] + "****"
}
