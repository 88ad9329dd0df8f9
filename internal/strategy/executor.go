package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trade-engine/internal/exchange"
	"trade-engine/internal/validate"
)

type orderGateway interface {
	SubmitOrder(ctx context.Context, intent exchange.OrderIntent) (exchange.OrderResult, error)
}

type filterSource interface {
	Filters(ctx context.Context, symbol string) (exchange.SymbolFilters, error)
}

// Engine 抽象策略执行入口，方便上层替换为模拟实现。
type Engine interface {
	Market(ctx context.Context, p MarketParams) (Outcome, error)
	Limit(ctx context.Context, p LimitParams) (Outcome, error)
	StopLimit(ctx context.Context, p StopLimitParams) (Outcome, error)
	Bracket(ctx context.Context, p BracketParams) (Outcome, error)
	TWAP(ctx context.Context, p TWAPParams) (Outcome, error)
	Grid(ctx context.Context, p GridParams) (Outcome, error)
}

// Options 控制策略执行的默认下单参数。
type Options struct {
	TimeInForce string
}

// Executor 把高层交易意图拆解为经过校验的网关调用。
// 网关与元数据缓存都无内部状态耦合，多个策略可以并发共享同一实例。
type Executor struct {
	gateway orderGateway
	filters filterSource
	logger  *zap.Logger
	opts    Options
}

var _ Engine = (*Executor)(nil)

// NewExecutor 创建策略执行器。
func NewExecutor(gateway orderGateway, filters filterSource, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TimeInForce == "" {
		opts.TimeInForce = "GTC"
	}
	return &Executor{
		gateway: gateway,
		filters: filters,
		logger:  logger,
		opts:    opts,
	}
}

// place 先根据缓存过滤器校验意图，通过后才允许触达网关。
// 元数据查询失败与校验失败同等对待：该子订单不会产生任何网关调用。
func (e *Executor) place(ctx context.Context, intent exchange.OrderIntent) (*exchange.OrderResult, error) {
	filters, err := e.filters.Filters(ctx, intent.Symbol)
	if err != nil {
		e.logger.Warn("交易对过滤器不可用",
			zap.String("symbol", intent.Symbol),
			zap.Error(err),
		)
		return nil, err
	}

	if err := validate.Check(filters, intent.Quantity, intent.ValidationPrice()); err != nil {
		e.logger.Warn("委托未通过校验",
			zap.String("symbol", intent.Symbol),
			zap.String("kind", string(intent.Kind)),
			zap.String("quantity", intent.Quantity.String()),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := e.gateway.SubmitOrder(ctx, intent)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Executor) timeInForce(tif string) string {
	if tif == "" {
		return e.opts.TimeInForce
	}
	return tif
}

// waitInterval 可取消地等待下一个调度周期。
func waitInterval(ctx context.Context, interval time.Duration) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
