package order

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ladder-trader-go/infrastructure/logger"
)

// maxOrderRetries 单笔订单的下单重试上限。
const maxOrderRetries = 3

// tempIDPrefix 本地临时订单 ID 前缀，券商确认前使用。
const tempIDPrefix = "TEMP_"

// Ledger 进程内订单账本：记录每个 symbol 的全部订单，
// 提供按已成交订单聚合的 VWAP 均价与数量。所有方法并发安全。
type Ledger struct {
	mu     sync.RWMutex
	orders map[string]*Order            // order ID -> order
	bySym  map[string]map[string]*Order // symbol -> order ID -> order
	log    *logger.Logger
}

// NewLedger 创建订单账本。
func NewLedger(log *logger.Logger) *Ledger {
	return &Ledger{
		orders: make(map[string]*Order),
		bySym:  make(map[string]map[string]*Order),
		log:    log,
	}
}

// Create 以临时 ID 登记一笔 PENDING 订单并返回。
func (l *Ledger) Create(symbol string, side Side, kind Kind, qty int, price float64) *Order {
	now := time.Now()
	o := &Order{
		ID:        tempIDPrefix + uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Kind:      kind,
		Quantity:  qty,
		Price:     price,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	l.orders[o.ID] = o
	if l.bySym[symbol] == nil {
		l.bySym[symbol] = make(map[string]*Order)
	}
	l.bySym[symbol][o.ID] = o
	l.mu.Unlock()

	l.log.LogOrder("order_created", o.ID, map[string]interface{}{
		"symbol": symbol, "side": string(side), "kind": string(kind),
		"quantity": qty, "price": price,
	})
	return o
}

// ReplaceID 将临时 ID 原子替换为券商回传的真实 ID，字段全部保留。
// 旧 ID 不存在或新 ID 已占用时报错，账本不变。
func (l *Ledger) ReplaceID(oldID, newID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[oldID]
	if !ok {
		return fmt.Errorf("replace order id: %s not found", oldID)
	}
	if _, exists := l.orders[newID]; exists {
		return fmt.Errorf("replace order id: %s already present", newID)
	}

	delete(l.orders, oldID)
	delete(l.bySym[o.Symbol], oldID)
	o.ID = newID
	o.UpdatedAt = time.Now()
	l.orders[newID] = o
	l.bySym[o.Symbol][newID] = o
	return nil
}

// UpdateStatus 更新订单状态与成交明细。重复提交同一状态是无操作（幂等），
// 聚合值不会因此重复计入。errMsg 记录券商侧的拒单文本。
func (l *Ledger) UpdateStatus(id string, status Status, fillPrice float64, fillQty int, errMsg string) error {
	l.mu.Lock()
	o, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("update status: order %s not found", id)
	}
	if o.Status == status {
		l.mu.Unlock()
		return nil
	}
	o.Status = status
	if status == StatusExecuted {
		if fillPrice > 0 {
			o.Price = fillPrice
		}
		if fillQty > 0 {
			o.FilledQty = fillQty
		}
	}
	if errMsg != "" {
		o.Message = errMsg
	}
	o.UpdatedAt = time.Now()
	l.mu.Unlock()

	l.log.LogOrder("order_status", id, map[string]interface{}{
		"symbol": o.Symbol, "status": string(status), "price": o.Price,
	})
	return nil
}

// Get 按 ID 查询订单快照。
func (l *Ledger) Get(id string) (Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// AverageEntryPrice symbol 的已成交买卖的 VWAP 均价（按方向过滤）。
// 无成交时返回 0。
func (l *Ledger) AverageEntryPrice(symbol string, side Side) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var notional float64
	var qty int
	for _, o := range l.bySym[symbol] {
		if o.Status == StatusExecuted && o.Side == side {
			notional += o.Notional()
			qty += o.FilledQty
		}
	}
	if qty == 0 {
		return 0
	}
	return notional / float64(qty)
}

// TotalFilledQuantity symbol 某方向的已成交总量。
func (l *Ledger) TotalFilledQuantity(symbol string, side Side) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var qty int
	for _, o := range l.bySym[symbol] {
		if o.Status == StatusExecuted && o.Side == side {
			qty += o.FilledQty
		}
	}
	return qty
}

// ShouldRetry 仅被拒的订单在重试预算内可再次下单。
func (l *Ledger) ShouldRetry(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	if !ok {
		return false
	}
	return o.Status == StatusRejected && o.Retries < maxOrderRetries
}

// MarkRetry 记一次重试。
func (l *Ledger) MarkRetry(id string) {
	l.mu.Lock()
	if o, ok := l.orders[id]; ok {
		o.Retries++
		o.UpdatedAt = time.Now()
	}
	l.mu.Unlock()
}

// ClearSymbol 阶梯周期结束后清空该 symbol 的订单记录，
// 下一周期的 VWAP 从零开始累计。
func (l *Ledger) ClearSymbol(symbol string) {
	l.mu.Lock()
	for id := range l.bySym[symbol] {
		delete(l.orders, id)
	}
	delete(l.bySym, symbol)
	l.mu.Unlock()
}

// SymbolOrders symbol 的全部订单快照，按创建时间无序返回。
func (l *Ledger) SymbolOrders(symbol string) []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Order, 0, len(l.bySym[symbol]))
	for _, o := range l.bySym[symbol] {
		out = append(out, *o)
	}
	return out
}

// Summary 全账本的状态计数，会话结束时打印。
func (l *Ledger) Summary() map[Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[Status]int)
	for _, o := range l.orders {
		out[o.Status]++
	}
	return out
}

// Size 账本中的订单总数。
func (l *Ledger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}
