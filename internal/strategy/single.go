package strategy

import (
	"context"

	"go.uber.org/zap"

	"trade-engine/internal/exchange"
)

// Market 提交单笔市价单。校验失败立即中止，不触达网关。
func (e *Executor) Market(ctx context.Context, p MarketParams) (Outcome, error) {
	out := newOutcome("market", p.Symbol)

	intent := exchange.OrderIntent{
		Symbol:   p.Symbol,
		Side:     p.Side,
		Kind:     exchange.KindMarket,
		Quantity: p.Quantity,
	}

	return e.runSingle(ctx, out, intent)
}

// Limit 提交单笔限价单，有效期默认 GTC。
func (e *Executor) Limit(ctx context.Context, p LimitParams) (Outcome, error) {
	out := newOutcome("limit", p.Symbol)

	price := p.Price
	intent := exchange.OrderIntent{
		Symbol:      p.Symbol,
		Side:        p.Side,
		Kind:        exchange.KindLimit,
		Quantity:    p.Quantity,
		Price:       &price,
		TimeInForce: e.timeInForce(p.TimeInForce),
	}

	return e.runSingle(ctx, out, intent)
}

// StopLimit 提交止损限价单：触发价到达后挂出限价单，
// 过滤器校验针对限价进行。
func (e *Executor) StopLimit(ctx context.Context, p StopLimitParams) (Outcome, error) {
	out := newOutcome("stop_limit", p.Symbol)

	limitPrice := p.LimitPrice
	stopPrice := p.StopPrice
	intent := exchange.OrderIntent{
		Symbol:       p.Symbol,
		Side:         p.Side,
		Kind:         exchange.KindStopLimit,
		Quantity:     p.Quantity,
		Price:        &limitPrice,
		TriggerPrice: &stopPrice,
		TimeInForce:  e.timeInForce(p.TimeInForce),
	}

	return e.runSingle(ctx, out, intent)
}

// runSingle 执行单订单策略：唯一的子订单失败即策略失败，错误同时
// 记录进 Outcome 并返回给调用方。
func (e *Executor) runSingle(ctx context.Context, out Outcome, intent exchange.OrderIntent) (Outcome, error) {
	out.State = StateRunning

	result, err := e.place(ctx, intent)
	out.append(intent, result, err)
	out.complete()

	if err != nil {
		return out, err
	}

	e.logger.Info("策略执行完成",
		zap.String("strategy", out.Strategy),
		zap.String("symbol", out.Symbol),
		zap.String("order_id", result.OrderID),
	)
	return out, nil
}
