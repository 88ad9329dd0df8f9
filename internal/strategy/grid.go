package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-engine/internal/exchange"
)

var two = decimal.NewFromInt(2)

type gridLevel struct {
	price decimal.Decimal
	side  exchange.Side
}

// planGrid 计算全部网格档位。价格步长为 (upper-lower)/(numLevels-1)，
// 低于区间中点的档位买入，其余卖出；恰好落在中点的档位因为比较是
// 严格小于而归为卖出。
func planGrid(p GridParams) ([]gridLevel, error) {
	if p.NumLevels <= 1 {
		return nil, fmt.Errorf("%w: 网格档位数必须大于1", ErrAborted)
	}
	if p.UpperBound.LessThanOrEqual(p.LowerBound) {
		return nil, fmt.Errorf("%w: 网格上界必须大于下界", ErrAborted)
	}

	priceStep := p.UpperBound.Sub(p.LowerBound).Div(decimal.NewFromInt(int64(p.NumLevels - 1)))
	midpoint := p.LowerBound.Add(p.UpperBound).Div(two)

	levels := make([]gridLevel, 0, p.NumLevels)
	for i := 0; i < p.NumLevels; i++ {
		price := p.LowerBound.Add(priceStep.Mul(decimal.NewFromInt(int64(i))))
		side := exchange.SideSell
		if price.LessThan(midpoint) {
			side = exchange.SideBuy
		}
		levels = append(levels, gridLevel{price: price, side: side})
	}

	return levels, nil
}

// Grid 在价格区间内按档位索引顺序挂出等距限价单。单个档位失败只
// 记录并跳过，剩余档位照常尝试；静态网格，不随成交补挂。
func (e *Executor) Grid(ctx context.Context, p GridParams) (Outcome, error) {
	out := newOutcome("grid", p.Symbol)

	levels, err := planGrid(p)
	if err != nil {
		e.logger.Warn("网格策略中止",
			zap.String("symbol", p.Symbol),
			zap.Int("num_levels", p.NumLevels),
			zap.Error(err),
		)
		return out, err
	}

	e.logger.Info("网格策略开始",
		zap.String("symbol", p.Symbol),
		zap.Int("levels", len(levels)),
		zap.String("lower", p.LowerBound.String()),
		zap.String("upper", p.UpperBound.String()),
	)

	out.State = StateRunning
	for i, level := range levels {
		price := level.price
		intent := exchange.OrderIntent{
			Symbol:      p.Symbol,
			Side:        level.side,
			Kind:        exchange.KindLimit,
			Quantity:    p.QuantityPerLevel,
			Price:       &price,
			TimeInForce: e.timeInForce(p.TimeInForce),
		}

		result, err := e.place(ctx, intent)
		out.append(intent, result, err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			e.logger.Warn("网格档位下单失败，跳过该档位",
				zap.String("symbol", p.Symbol),
				zap.Int("level", i+1),
				zap.String("price", level.price.String()),
				zap.Error(err),
			)
		}
	}
	out.complete()

	e.logger.Info("网格策略执行完成",
		zap.String("symbol", p.Symbol),
		zap.Int("placed", len(out.Placed())),
		zap.Int("failed", out.FailedSteps()),
	)
	return out, nil
}
