package strategy

import (
	"context"
	"testing"

	"trade-engine/internal/exchange"
)

func TestBracket_PlacesBothLegs(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	out, err := exec.Bracket(context.Background(), BracketParams{
		Symbol:     testSymbol,
		Side:       exchange.SideBuy,
		Quantity:   dec(t, "0.01"),
		TakeProfit: dec(t, "35000"),
		StopLoss:   dec(t, "28000"),
	})
	if err != nil {
		t.Fatalf("Bracket returned error: %v", err)
	}
	if out.State != StateCompleted {
		t.Fatalf("expected state %q, got %q", StateCompleted, out.State)
	}
	if len(gateway.intents) != 2 {
		t.Fatalf("expected 2 gateway calls, got %d", len(gateway.intents))
	}

	tp, sl := gateway.intents[0], gateway.intents[1]
	if tp.Kind != exchange.KindTakeProfit {
		t.Fatalf("first leg: expected kind %q, got %q", exchange.KindTakeProfit, tp.Kind)
	}
	if sl.Kind != exchange.KindStopMarket {
		t.Fatalf("second leg: expected kind %q, got %q", exchange.KindStopMarket, sl.Kind)
	}
	// 多头持仓的离场腿都是卖出方向。
	if tp.Side != exchange.SideSell || sl.Side != exchange.SideSell {
		t.Fatalf("exit legs must oppose the position side, got %q/%q", tp.Side, sl.Side)
	}
	if !tp.ReduceOnly || !sl.ReduceOnly {
		t.Fatal("both legs must be reduce-only")
	}
	if tp.TriggerPrice == nil || !tp.TriggerPrice.Equal(dec(t, "35000")) {
		t.Fatalf("unexpected take profit trigger: %v", tp.TriggerPrice)
	}
	if sl.TriggerPrice == nil || !sl.TriggerPrice.Equal(dec(t, "28000")) {
		t.Fatalf("unexpected stop loss trigger: %v", sl.TriggerPrice)
	}
}

func TestBracket_ShortPositionExitsBuy(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	_, err := exec.Bracket(context.Background(), BracketParams{
		Symbol:     testSymbol,
		Side:       exchange.SideSell,
		Quantity:   dec(t, "0.01"),
		TakeProfit: dec(t, "28000"),
		StopLoss:   dec(t, "35000"),
	})
	if err != nil {
		t.Fatalf("Bracket returned error: %v", err)
	}
	for i, intent := range gateway.intents {
		if intent.Side != exchange.SideBuy {
			t.Fatalf("leg %d: short position exit must buy, got %q", i, intent.Side)
		}
	}
}

func TestBracket_SecondLegAttemptedAfterFirstFails(t *testing.T) {
	submitErr := &exchange.RejectionError{Code: "-2021", Message: "Order would immediately trigger."}
	exec, gateway, _ := newTestExecutor(map[int]error{0: submitErr})

	out, err := exec.Bracket(context.Background(), BracketParams{
		Symbol:     testSymbol,
		Side:       exchange.SideBuy,
		Quantity:   dec(t, "0.01"),
		TakeProfit: dec(t, "35000"),
		StopLoss:   dec(t, "28000"),
	})
	if err != nil {
		t.Fatalf("Bracket must not fail as a whole, got %v", err)
	}
	if len(gateway.intents) != 2 {
		t.Fatalf("second leg must still be attempted, got %d calls", len(gateway.intents))
	}
	if out.FailedSteps() != 1 {
		t.Fatalf("expected 1 failed step, got %d", out.FailedSteps())
	}
	if len(out.Placed()) != 1 {
		t.Fatalf("expected 1 placed order, got %d", len(out.Placed()))
	}
	if out.Steps[0].Err == nil || out.Steps[1].Err != nil {
		t.Fatal("failure must be recorded on the first leg only")
	}
}

func TestBracket_OffTickTriggerRejected(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	out, err := exec.Bracket(context.Background(), BracketParams{
		Symbol:     testSymbol,
		Side:       exchange.SideBuy,
		Quantity:   dec(t, "0.01"),
		TakeProfit: dec(t, "35000.3"),
		StopLoss:   dec(t, "28000"),
	})
	if err != nil {
		t.Fatalf("Bracket must not fail as a whole, got %v", err)
	}
	// 止盈腿触发价不在 tick 网格上，被本地校验拦下；止损腿照常提交。
	if len(gateway.intents) != 1 {
		t.Fatalf("expected only the stop leg to reach the gateway, got %d calls", len(gateway.intents))
	}
	if gateway.intents[0].Kind != exchange.KindStopMarket {
		t.Fatalf("expected stop leg, got %q", gateway.intents[0].Kind)
	}
	if out.FailedSteps() != 1 || len(out.Placed()) != 1 {
		t.Fatalf("expected one failure and one placement, got failed=%d placed=%d",
			out.FailedSteps(), len(out.Placed()))
	}
}
