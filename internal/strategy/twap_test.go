package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"trade-engine/internal/exchange"
)

func TestPlanTWAP(t *testing.T) {
	tests := []struct {
		name       string
		duration   time.Duration
		interval   time.Duration
		total      string
		wantSlices int
		wantPer    string
		wantAbort  bool
	}{
		{
			name:       "five minutes at one minute intervals",
			duration:   5 * time.Minute,
			interval:   time.Minute,
			total:      "1.0",
			wantSlices: 5,
			wantPer:    "0.2",
		},
		{
			name:       "uneven division floors the slice count",
			duration:   5 * time.Minute,
			interval:   90 * time.Second,
			total:      "0.9",
			wantSlices: 3,
			wantPer:    "0.3",
		},
		{
			name:      "duration shorter than interval aborts",
			duration:  time.Minute,
			interval:  2 * time.Minute,
			total:     "1.0",
			wantAbort: true,
		},
		{
			name:      "zero interval aborts",
			duration:  time.Minute,
			interval:  0,
			total:     "1.0",
			wantAbort: true,
		},
		{
			name:      "negative duration aborts",
			duration:  -5 * time.Minute,
			interval:  time.Minute,
			total:     "1.0",
			wantAbort: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slices, perSlice, err := planTWAP(TWAPParams{
				Symbol:        testSymbol,
				Side:          exchange.SideBuy,
				TotalQuantity: dec(t, tt.total),
				Duration:      tt.duration,
				Interval:      tt.interval,
			})
			if tt.wantAbort {
				if !errors.Is(err, ErrAborted) {
					t.Fatalf("expected ErrAborted, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("planTWAP returned error: %v", err)
			}
			if slices != tt.wantSlices {
				t.Fatalf("expected %d slices, got %d", tt.wantSlices, slices)
			}
			if !perSlice.Equal(dec(t, tt.wantPer)) {
				t.Fatalf("expected per-slice quantity %s, got %s", tt.wantPer, perSlice)
			}
		})
	}
}

func TestTWAP_AbortPlacesNoOrders(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	out, err := exec.TWAP(context.Background(), TWAPParams{
		Symbol:        testSymbol,
		Side:          exchange.SideBuy,
		TotalQuantity: dec(t, "1.0"),
		Duration:      time.Minute,
		Interval:      2 * time.Minute,
	})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if len(gateway.intents) != 0 {
		t.Fatalf("aborted TWAP must not reach the gateway, got %d calls", len(gateway.intents))
	}
	if len(out.Steps) != 0 {
		t.Fatalf("aborted TWAP must record zero steps, got %d", len(out.Steps))
	}
}

func TestTWAP_NegativeDurationAborts(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	out, err := exec.TWAP(context.Background(), TWAPParams{
		Symbol:        testSymbol,
		Side:          exchange.SideBuy,
		TotalQuantity: dec(t, "1.0"),
		Duration:      -5 * time.Minute,
		Interval:      time.Minute,
	})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if out.State == StateCompleted {
		t.Fatal("aborted TWAP must not report completed state")
	}
	if len(gateway.intents) != 0 {
		t.Fatalf("aborted TWAP must not reach the gateway, got %d calls", len(gateway.intents))
	}
}

func TestTWAP_ContinuesAfterSliceFailure(t *testing.T) {
	submitErr := &exchange.RejectionError{Code: "-2019", Message: "Margin is insufficient."}
	exec, gateway, _ := newTestExecutor(map[int]error{1: submitErr})

	out, err := exec.TWAP(context.Background(), TWAPParams{
		Symbol:        testSymbol,
		Side:          exchange.SideSell,
		TotalQuantity: dec(t, "0.009"),
		Duration:      3 * time.Millisecond,
		Interval:      time.Millisecond,
	})
	if err != nil {
		t.Fatalf("TWAP returned error: %v", err)
	}
	if out.State != StateCompleted {
		t.Fatalf("expected state %q, got %q", StateCompleted, out.State)
	}
	if len(gateway.intents) != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", len(gateway.intents))
	}
	if out.FailedSteps() != 1 {
		t.Fatalf("expected 1 failed step, got %d", out.FailedSteps())
	}
	if len(out.Placed()) != 2 {
		t.Fatalf("expected 2 placed orders, got %d", len(out.Placed()))
	}
	for i, intent := range gateway.intents {
		if intent.Kind != exchange.KindMarket {
			t.Fatalf("slice %d: expected market kind, got %q", i, intent.Kind)
		}
		if !intent.Quantity.Equal(dec(t, "0.003")) {
			t.Fatalf("slice %d: expected quantity 0.003, got %s", i, intent.Quantity)
		}
	}
}

func TestTWAP_CancellationStopsSchedule(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 取消发生在第一个子单之后的等待期，剩余排期被放弃。
	out, err := exec.TWAP(ctx, TWAPParams{
		Symbol:        testSymbol,
		Side:          exchange.SideBuy,
		TotalQuantity: dec(t, "0.01"),
		Duration:      10 * time.Minute,
		Interval:      time.Minute,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.State == StateCompleted {
		t.Fatal("cancelled TWAP must not report completed state")
	}
	if len(gateway.intents) >= 10 {
		t.Fatalf("cancellation must abandon remaining slices, got %d calls", len(gateway.intents))
	}
}
