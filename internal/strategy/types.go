package strategy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"trade-engine/internal/exchange"
)

// ErrAborted 表示策略的结构性前置条件不满足，没有任何订单被尝试。
var ErrAborted = errors.New("strategy aborted")

// State 表示一次策略执行的生命周期阶段。
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Step 记录一个子订单的意图与结局，成功与失败互斥。
type Step struct {
	Intent exchange.OrderIntent
	Result *exchange.OrderResult
	Err    error
}

// Outcome 为一次策略执行的完整结果。多订单策略不存在整体失败态：
// 只要全部子订单都被尝试过即为 Completed，成功与失败的混合记录在
// Steps 中。
type Outcome struct {
	Strategy   string
	Symbol     string
	State      State
	Steps      []Step
	StartedAt  time.Time
	FinishedAt time.Time
}

func newOutcome(strategy, symbol string) Outcome {
	return Outcome{
		Strategy:  strategy,
		Symbol:    symbol,
		State:     StatePending,
		StartedAt: time.Now().UTC(),
	}
}

func (o *Outcome) append(intent exchange.OrderIntent, result *exchange.OrderResult, err error) {
	o.Steps = append(o.Steps, Step{Intent: intent, Result: result, Err: err})
}

func (o *Outcome) complete() {
	o.State = StateCompleted
	o.FinishedAt = time.Now().UTC()
}

// Placed 返回成功提交的订单回执，顺序与提交顺序一致。
func (o Outcome) Placed() []exchange.OrderResult {
	out := make([]exchange.OrderResult, 0, len(o.Steps))
	for _, step := range o.Steps {
		if step.Err == nil && step.Result != nil {
			out = append(out, *step.Result)
		}
	}
	return out
}

// FailedSteps 返回失败的子订单数。
func (o Outcome) FailedSteps() int {
	failed := 0
	for _, step := range o.Steps {
		if step.Err != nil {
			failed++
		}
	}
	return failed
}

// MarketParams 为市价策略参数。
type MarketParams struct {
	Symbol   string
	Side     exchange.Side
	Quantity decimal.Decimal
}

// LimitParams 为限价策略参数，TimeInForce 为空时使用执行器默认值。
type LimitParams struct {
	Symbol      string
	Side        exchange.Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TimeInForce string
}

// StopLimitParams 为止损限价策略参数，过滤器校验针对限价进行。
type StopLimitParams struct {
	Symbol      string
	Side        exchange.Side
	Quantity    decimal.Decimal
	StopPrice   decimal.Decimal
	LimitPrice  decimal.Decimal
	TimeInForce string
}

// BracketParams 为模拟括号单参数：在持仓反方向同时挂出止盈与止损两腿。
// 两腿相互独立，一腿成交不会撤销另一腿。
type BracketParams struct {
	Symbol     string
	Side       exchange.Side
	Quantity   decimal.Decimal
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// TWAPParams 为时间加权拆单参数，总量按间隔数等分为市价子单。
type TWAPParams struct {
	Symbol        string
	Side          exchange.Side
	TotalQuantity decimal.Decimal
	Duration      time.Duration
	Interval      time.Duration
}

// GridParams 为网格策略参数，在价格区间内等距挂出限价单。
type GridParams struct {
	Symbol           string
	QuantityPerLevel decimal.Decimal
	LowerBound       decimal.Decimal
	UpperBound       decimal.Decimal
	NumLevels        int
	TimeInForce      string
}
