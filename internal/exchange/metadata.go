package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SymbolFilters 描述交易所为单个合约定义的数量与价格约束，拉取后不再变化。
type SymbolFilters struct {
	Symbol   string          `json:"symbol"`
	RawID    string          `json:"raw_id"`
	Active   bool            `json:"active"`
	MinQty   decimal.Decimal `json:"min_qty"`
	MaxQty   decimal.Decimal `json:"max_qty"`
	StepSize decimal.Decimal `json:"step_size"`
	MinPrice decimal.Decimal `json:"min_price"`
	MaxPrice decimal.Decimal `json:"max_price"`
	TickSize decimal.Decimal `json:"tick_size"`
}

// MarketLister 抽象市场元数据拉取，便于测试替换。
type MarketLister interface {
	FetchMarkets(ctx context.Context) ([]ccxt.MarketInterface, error)
}

// MetadataCache 在进程生命周期内只拉取一次交易所元数据并提供过滤器查询。
// 初始化失败会被记住，后续查询直接返回同一错误，不会降级也不会重拉，
// 恢复手段是重启进程。
type MetadataCache struct {
	lister MarketLister
	logger *zap.Logger

	once      sync.Once
	filters   map[string]SymbolFilters
	symbols   []string
	fetchedAt time.Time
	initErr   error
}

// NewMetadataCache 创建元数据缓存，首次查询时才真正拉取。
func NewMetadataCache(lister MarketLister, logger *zap.Logger) *MetadataCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataCache{
		lister: lister,
		logger: logger,
	}
}

// Warm 主动触发一次初始化，启动阶段调用以便尽早暴露致命错误。
func (c *MetadataCache) Warm(ctx context.Context) error {
	return c.ensure(ctx)
}

// Filters 返回指定交易对的过滤器，统一符号与原始交易所ID均可作为键。
func (c *MetadataCache) Filters(ctx context.Context, symbol string) (SymbolFilters, error) {
	if err := c.ensure(ctx); err != nil {
		return SymbolFilters{}, err
	}

	filters, ok := c.filters[symbol]
	if !ok {
		return SymbolFilters{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return filters, nil
}

// Symbols 返回当前可交易的统一符号列表。
func (c *MetadataCache) Symbols(ctx context.Context) ([]string, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out, nil
}

// FetchedAt 返回元数据拉取时间，未初始化时为零值。
func (c *MetadataCache) FetchedAt() time.Time {
	return c.fetchedAt
}

func (c *MetadataCache) ensure(ctx context.Context) error {
	c.once.Do(func() {
		markets, err := c.lister.FetchMarkets(ctx)
		if err != nil {
			c.initErr = fmt.Errorf("拉取交易所元数据失败: %w", err)
			return
		}

		filters := make(map[string]SymbolFilters, len(markets))
		symbols := make([]string, 0, len(markets))
		skipped := 0

		for _, market := range markets {
			parsed, ok := parseSymbolFilters(market)
			if !ok {
				skipped++
				continue
			}

			if parsed.Symbol != "" {
				filters[parsed.Symbol] = parsed
			}
			if parsed.RawID != "" && parsed.RawID != parsed.Symbol {
				filters[parsed.RawID] = parsed
			}
			if parsed.Active && parsed.Symbol != "" {
				symbols = append(symbols, parsed.Symbol)
			}
		}

		if len(filters) == 0 {
			c.initErr = fmt.Errorf("交易所元数据为空，无法继续下单")
			return
		}

		sort.Strings(symbols)
		c.filters = filters
		c.symbols = symbols
		c.fetchedAt = time.Now().UTC()

		c.logger.Info("交易所元数据已缓存",
			zap.Int("markets", len(markets)),
			zap.Int("tradable", len(symbols)),
			zap.Int("skipped", skipped),
		)
	})

	return c.initErr
}

// parseSymbolFilters 从市场原始信息中解析 PRICE_FILTER 与 LOT_SIZE。
// 过滤器数值来自交易所返回的十进制字符串，直接交给 decimal 解析，
// 避免二进制浮点造成的步长误判。
func parseSymbolFilters(market ccxt.MarketInterface) (SymbolFilters, bool) {
	info := market.Info
	if info == nil {
		return SymbolFilters{}, false
	}

	out := SymbolFilters{}
	if market.Symbol != nil {
		out.Symbol = *market.Symbol
	}
	if raw, ok := info["symbol"].(string); ok {
		out.RawID = raw
	}
	if status, ok := info["status"].(string); ok {
		out.Active = status == "TRADING"
	}

	rawFilters, ok := info["filters"].([]interface{})
	if !ok {
		return SymbolFilters{}, false
	}

	var gotPrice, gotLot bool
	for _, rawFilter := range rawFilters {
		filter, ok := rawFilter.(map[string]interface{})
		if !ok {
			continue
		}

		switch filter["filterType"] {
		case "PRICE_FILTER":
			minPrice, err1 := decimalField(filter, "minPrice")
			maxPrice, err2 := decimalField(filter, "maxPrice")
			tickSize, err3 := decimalField(filter, "tickSize")
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			out.MinPrice, out.MaxPrice, out.TickSize = minPrice, maxPrice, tickSize
			gotPrice = true
		case "LOT_SIZE":
			minQty, err1 := decimalField(filter, "minQty")
			maxQty, err2 := decimalField(filter, "maxQty")
			stepSize, err3 := decimalField(filter, "stepSize")
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			out.MinQty, out.MaxQty, out.StepSize = minQty, maxQty, stepSize
			gotLot = true
		}
	}

	if !gotPrice || !gotLot {
		return SymbolFilters{}, false
	}
	return out, true
}

func decimalField(filter map[string]interface{}, key string) (decimal.Decimal, error) {
	value, ok := filter[key].(string)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("过滤器字段 %s 缺失", key)
	}
	return decimal.NewFromString(value)
}
