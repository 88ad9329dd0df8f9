package strategy

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"trade-engine/internal/exchange"
)

// stubGateway 按调用顺序记录意图，可在指定序号注入失败。
type stubGateway struct {
	intents []exchange.OrderIntent
	failAt  map[int]error
}

func (g *stubGateway) SubmitOrder(ctx context.Context, intent exchange.OrderIntent) (exchange.OrderResult, error) {
	idx := len(g.intents)
	g.intents = append(g.intents, intent)
	if err, ok := g.failAt[idx]; ok {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		OrderID: fmt.Sprintf("oid-%d", idx+1),
		Status:  "NEW",
	}, nil
}

type stubFilters struct {
	filters map[string]exchange.SymbolFilters
	calls   int
}

func (f *stubFilters) Filters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	f.calls++
	filters, ok := f.filters[symbol]
	if !ok {
		return exchange.SymbolFilters{}, fmt.Errorf("%w: %s", exchange.ErrUnknownSymbol, symbol)
	}
	return filters, nil
}

const testSymbol = "BTC/USDT:USDT"

func btcFilters() exchange.SymbolFilters {
	return exchange.SymbolFilters{
		Symbol:   testSymbol,
		RawID:    "BTCUSDT",
		Active:   true,
		MinQty:   decimal.RequireFromString("0.001"),
		MaxQty:   decimal.RequireFromString("1000"),
		StepSize: decimal.RequireFromString("0.001"),
		MinPrice: decimal.RequireFromString("100"),
		MaxPrice: decimal.RequireFromString("1000000"),
		TickSize: decimal.RequireFromString("0.5"),
	}
}

func newTestExecutor(failAt map[int]error) (*Executor, *stubGateway, *stubFilters) {
	gateway := &stubGateway{failAt: failAt}
	filters := &stubFilters{filters: map[string]exchange.SymbolFilters{
		testSymbol: btcFilters(),
	}}
	exec := NewExecutor(gateway, filters, Options{TimeInForce: "GTC"}, nil)
	return exec, gateway, filters
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}
