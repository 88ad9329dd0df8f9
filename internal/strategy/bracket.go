package strategy

import (
	"context"

	"go.uber.org/zap"

	"trade-engine/internal/exchange"
)

// Bracket 在持仓反方向同时挂出止盈与止损两腿，模拟括号单。
// 第一腿失败不影响第二腿的尝试，每腿的结局独立记录。
// 两腿之间没有撤销联动：一腿成交后另一腿仍然留在交易所，
// 需要真正 OCO 语义的调用方必须自行监控并撤单。
func (e *Executor) Bracket(ctx context.Context, p BracketParams) (Outcome, error) {
	out := newOutcome("bracket", p.Symbol)

	exitSide := p.Side.Opposite()
	takeProfit := p.TakeProfit
	stopLoss := p.StopLoss

	intents := []exchange.OrderIntent{
		{
			Symbol:       p.Symbol,
			Side:         exitSide,
			Kind:         exchange.KindTakeProfit,
			Quantity:     p.Quantity,
			TriggerPrice: &takeProfit,
			ReduceOnly:   true,
		},
		{
			Symbol:       p.Symbol,
			Side:         exitSide,
			Kind:         exchange.KindStopMarket,
			Quantity:     p.Quantity,
			TriggerPrice: &stopLoss,
			ReduceOnly:   true,
		},
	}

	out.State = StateRunning
	for _, intent := range intents {
		result, err := e.place(ctx, intent)
		out.append(intent, result, err)
		if err != nil {
			e.logger.Warn("括号单子订单失败，继续处理另一腿",
				zap.String("symbol", p.Symbol),
				zap.String("kind", string(intent.Kind)),
				zap.Error(err),
			)
		}
	}
	out.complete()

	e.logger.Info("括号单策略执行完成",
		zap.String("symbol", p.Symbol),
		zap.Int("placed", len(out.Placed())),
		zap.Int("failed", out.FailedSteps()),
	)
	return out, nil
}
