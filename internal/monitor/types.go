package monitor

import (
	"time"

	"trade-engine/internal/exchange"
	"trade-engine/internal/strategy"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventStrategyOutcome EventType = "strategy_outcome"
	EventError           EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StepRecord 为子订单结局的可序列化形式，错误以文本落盘。
type StepRecord struct {
	Intent  exchange.OrderIntent  `json:"intent"`
	Result  *exchange.OrderResult `json:"result,omitempty"`
	Failure string                `json:"failure,omitempty"`
}

// OutcomeRecord 为策略执行结果的可序列化形式，同时用于落盘与HTTP响应。
type OutcomeRecord struct {
	Strategy   string       `json:"strategy"`
	Symbol     string       `json:"symbol"`
	State      string       `json:"state"`
	Steps      []StepRecord `json:"steps"`
	Placed     int          `json:"placed"`
	Failed     int          `json:"failed"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
}

// NewOutcomeRecord 把策略结果转换为可序列化形式。
func NewOutcomeRecord(out strategy.Outcome) OutcomeRecord {
	steps := make([]StepRecord, 0, len(out.Steps))
	for _, step := range out.Steps {
		record := StepRecord{
			Intent: step.Intent,
			Result: step.Result,
		}
		if step.Err != nil {
			record.Failure = step.Err.Error()
		}
		steps = append(steps, record)
	}

	return OutcomeRecord{
		Strategy:   out.Strategy,
		Symbol:     out.Symbol,
		State:      string(out.State),
		Steps:      steps,
		Placed:     len(out.Placed()),
		Failed:     out.FailedSteps(),
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
	}
}

// ErrorPayload 记录系统级错误。
type ErrorPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
