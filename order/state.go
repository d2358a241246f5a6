package order

import (
	"fmt"
	"time"
)

// Status 订单生命周期状态。
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal 终态订单不再参与重试。
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusCancelled
}

// Side 订单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回相反方向，平仓下单用。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Kind 订单在阶梯里扮演的角色。
type Kind string

const (
	KindEntry Kind = "ENTRY"
	KindAddOn Kind = "ADD_ON"
	KindExit  Kind = "EXIT"
)

// Order 账本中的一笔订单记录。
// ID 初始为临时 ID（TEMP_ 前缀），券商确认后由 ReplaceID 换成真实 ID。
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Kind      Kind
	Quantity  int     // 请求数量
	Price     float64 // 成交价；挂单阶段为预期价
	FilledQty int     // 实际成交数量，聚合只看这个
	Status    Status
	Message   string // 券商侧的拒单/错误文本
	Retries   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Executed 订单是否已成交。
func (o *Order) Executed() bool { return o.Status == StatusExecuted }

// Notional 成交金额。
func (o *Order) Notional() float64 { return float64(o.FilledQty) * o.Price }

func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s x%d @%.2f [%s]", o.ID, o.Side, o.Symbol, o.Quantity, o.Price, o.Status)
}
