package exchange

import (
	"github.com/shopspring/decimal"
)

// Side 表示下单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind 表示委托类型。
type OrderKind string

const (
	// KindMarket 市价单，立即按盘口成交。
	KindMarket OrderKind = "market"
	// KindLimit 限价单，需携带价格与有效期。
	KindLimit OrderKind = "limit"
	// KindStopLimit 止损限价单，触发价到达后挂出限价单。
	KindStopLimit OrderKind = "stop_limit"
	// KindTakeProfit 止盈触发市价单，用于离场腿。
	KindTakeProfit OrderKind = "take_profit"
	// KindStopMarket 止损触发市价单，用于离场腿。
	KindStopMarket OrderKind = "stop_market"
)

// OrderIntent 描述一笔即将提交给交易所的委托，由策略构造、网关消费一次。
type OrderIntent struct {
	Symbol       string           `json:"symbol"`
	Side         Side             `json:"side"`
	Kind         OrderKind        `json:"kind"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	TriggerPrice *decimal.Decimal `json:"trigger_price,omitempty"`
	TimeInForce  string           `json:"time_in_force,omitempty"`
	ReduceOnly   bool             `json:"reduce_only,omitempty"`
}

// ValidationPrice 返回需要参与过滤器校验的价格：限价单取限价，
// 触发市价单取触发价，市价单没有价格可校验。
func (i OrderIntent) ValidationPrice() *decimal.Decimal {
	if i.Price != nil {
		return i.Price
	}
	return i.TriggerPrice
}

// OrderResult 为交易所返回的下单回执。
type OrderResult struct {
	OrderID       string                 `json:"order_id"`
	ClientOrderID string                 `json:"client_order_id,omitempty"`
	Status        string                 `json:"status,omitempty"`
	Raw           map[string]interface{} `json:"-"`
}
