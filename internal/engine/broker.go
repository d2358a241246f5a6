package engine

import "ladder-trader-go/gateway"

// Broker 引擎对券商网关的最小依赖面，便于测试注入假实现。
// *gateway.Client 满足该接口。
type Broker interface {
	PlaceOrder(symbol, side string, qty int, orderType string) (gateway.OrderResult, error)
	IsConnected() bool
}
