package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-engine/internal/exchange"
)

// planTWAP 计算拆单数量与每单数量。间隔数为 floor(duration/interval)，
// 为零时说明持续时间短于一个间隔，策略中止。
func planTWAP(p TWAPParams) (int, decimal.Decimal, error) {
	if p.Interval <= 0 {
		return 0, decimal.Decimal{}, fmt.Errorf("%w: interval 必须为正", ErrAborted)
	}

	slices := int(p.Duration / p.Interval)
	if slices <= 0 {
		return 0, decimal.Decimal{}, fmt.Errorf("%w: duration 短于一个 interval，不会产生任何订单", ErrAborted)
	}

	perSlice := p.TotalQuantity.Div(decimal.NewFromInt(int64(slices)))
	return slices, perSlice, nil
}

// TWAP 把总量等分为若干市价子单，按固定周期依次提交。
// 子订单失败只记录不中止，下一个周期照常发出；部分完成是合法结局，
// 实际成交总量可能小于请求总量。等待是可取消的：外部取消信号会
// 放弃剩余排期并返回已累计的结果。
func (e *Executor) TWAP(ctx context.Context, p TWAPParams) (Outcome, error) {
	out := newOutcome("twap", p.Symbol)

	slices, perSlice, err := planTWAP(p)
	if err != nil {
		e.logger.Warn("TWAP 策略中止",
			zap.String("symbol", p.Symbol),
			zap.Duration("duration", p.Duration),
			zap.Duration("interval", p.Interval),
			zap.Error(err),
		)
		return out, err
	}

	e.logger.Info("TWAP 策略开始",
		zap.String("symbol", p.Symbol),
		zap.String("total_quantity", p.TotalQuantity.String()),
		zap.Int("slices", slices),
		zap.String("quantity_per_slice", perSlice.String()),
		zap.Duration("interval", p.Interval),
	)

	out.State = StateRunning
	for i := 0; i < slices; i++ {
		intent := exchange.OrderIntent{
			Symbol:   p.Symbol,
			Side:     p.Side,
			Kind:     exchange.KindMarket,
			Quantity: perSlice,
		}

		result, err := e.place(ctx, intent)
		out.append(intent, result, err)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			e.logger.Warn("TWAP 子订单失败，继续下一周期",
				zap.String("symbol", p.Symbol),
				zap.Int("slice", i+1),
				zap.Int("slices", slices),
				zap.Error(err),
			)
		}

		if i < slices-1 {
			if err := waitInterval(ctx, p.Interval); err != nil {
				e.logger.Info("TWAP 排期被取消",
					zap.String("symbol", p.Symbol),
					zap.Int("completed", i+1),
					zap.Int("slices", slices),
				)
				return out, err
			}
		}
	}
	out.complete()

	e.logger.Info("TWAP 策略执行完成",
		zap.String("symbol", p.Symbol),
		zap.Int("placed", len(out.Placed())),
		zap.Int("failed", out.FailedSteps()),
	)
	return out, nil
}
