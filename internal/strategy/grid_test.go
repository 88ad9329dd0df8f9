package strategy

import (
	"context"
	"errors"
	"testing"

	"trade-engine/internal/exchange"
)

func TestPlanGrid_LevelsAndSides(t *testing.T) {
	levels, err := planGrid(GridParams{
		Symbol:           testSymbol,
		QuantityPerLevel: dec(t, "0.01"),
		LowerBound:       dec(t, "100"),
		UpperBound:       dec(t, "200"),
		NumLevels:        3,
	})
	if err != nil {
		t.Fatalf("planGrid returned error: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}

	wantPrices := []string{"100", "150", "200"}
	wantSides := []exchange.Side{exchange.SideBuy, exchange.SideSell, exchange.SideSell}
	for i, level := range levels {
		if !level.price.Equal(dec(t, wantPrices[i])) {
			t.Fatalf("level %d: expected price %s, got %s", i, wantPrices[i], level.price)
		}
		if level.side != wantSides[i] {
			t.Fatalf("level %d: expected side %q, got %q", i, wantSides[i], level.side)
		}
	}
}

func TestPlanGrid_BoundsIncluded(t *testing.T) {
	levels, err := planGrid(GridParams{
		Symbol:           testSymbol,
		QuantityPerLevel: dec(t, "0.01"),
		LowerBound:       dec(t, "100"),
		UpperBound:       dec(t, "400"),
		NumLevels:        4,
	})
	if err != nil {
		t.Fatalf("planGrid returned error: %v", err)
	}
	first := levels[0].price
	last := levels[len(levels)-1].price
	if !first.Equal(dec(t, "100")) || !last.Equal(dec(t, "400")) {
		t.Fatalf("grid must include both bounds, got first=%s last=%s", first, last)
	}
}

func TestPlanGrid_Aborts(t *testing.T) {
	tests := []struct {
		name   string
		lower  string
		upper  string
		levels int
	}{
		{name: "single level", lower: "100", upper: "200", levels: 1},
		{name: "zero levels", lower: "100", upper: "200", levels: 0},
		{name: "inverted bounds", lower: "200", upper: "100", levels: 3},
		{name: "equal bounds", lower: "100", upper: "100", levels: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := planGrid(GridParams{
				Symbol:           testSymbol,
				QuantityPerLevel: dec(t, "0.01"),
				LowerBound:       dec(t, tt.lower),
				UpperBound:       dec(t, tt.upper),
				NumLevels:        tt.levels,
			})
			if !errors.Is(err, ErrAborted) {
				t.Fatalf("expected ErrAborted, got %v", err)
			}
		})
	}
}

func TestGrid_AbortPlacesNoOrders(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	out, err := exec.Grid(context.Background(), GridParams{
		Symbol:           testSymbol,
		QuantityPerLevel: dec(t, "0.01"),
		LowerBound:       dec(t, "100"),
		UpperBound:       dec(t, "200"),
		NumLevels:        1,
	})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if len(gateway.intents) != 0 {
		t.Fatalf("aborted grid must not reach the gateway, got %d calls", len(gateway.intents))
	}
	if len(out.Steps) != 0 {
		t.Fatalf("aborted grid must record zero steps, got %d", len(out.Steps))
	}
}

func TestGrid_PlacesLimitOrdersPerLevel(t *testing.T) {
	exec, gateway, _ := newTestExecutor(nil)

	out, err := exec.Grid(context.Background(), GridParams{
		Symbol:           testSymbol,
		QuantityPerLevel: dec(t, "0.01"),
		LowerBound:       dec(t, "100"),
		UpperBound:       dec(t, "200"),
		NumLevels:        3,
	})
	if err != nil {
		t.Fatalf("Grid returned error: %v", err)
	}
	if out.State != StateCompleted {
		t.Fatalf("expected state %q, got %q", StateCompleted, out.State)
	}
	if len(gateway.intents) != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", len(gateway.intents))
	}
	for i, intent := range gateway.intents {
		if intent.Kind != exchange.KindLimit {
			t.Fatalf("level %d: expected limit kind, got %q", i, intent.Kind)
		}
		if intent.TimeInForce != "GTC" {
			t.Fatalf("level %d: expected time in force GTC, got %q", i, intent.TimeInForce)
		}
		if !intent.Quantity.Equal(dec(t, "0.01")) {
			t.Fatalf("level %d: unexpected quantity %s", i, intent.Quantity)
		}
	}
	if gateway.intents[0].Side != exchange.SideBuy || gateway.intents[2].Side != exchange.SideSell {
		t.Fatal("levels below the midpoint must buy and levels above must sell")
	}
}

func TestGrid_SkipsFailedLevel(t *testing.T) {
	submitErr := &exchange.RejectionError{Code: "-1013", Message: "Filter failure: PERCENT_PRICE"}
	exec, gateway, _ := newTestExecutor(map[int]error{0: submitErr})

	out, err := exec.Grid(context.Background(), GridParams{
		Symbol:           testSymbol,
		QuantityPerLevel: dec(t, "0.01"),
		LowerBound:       dec(t, "100"),
		UpperBound:       dec(t, "200"),
		NumLevels:        3,
	})
	if err != nil {
		t.Fatalf("Grid returned error: %v", err)
	}
	if len(gateway.intents) != 3 {
		t.Fatalf("remaining levels must still be attempted, got %d calls", len(gateway.intents))
	}
	if out.FailedSteps() != 1 {
		t.Fatalf("expected 1 failed step, got %d", out.FailedSteps())
	}
	if len(out.Placed()) != 2 {
		t.Fatalf("expected 2 placed orders, got %d", len(out.Placed()))
	}
}
