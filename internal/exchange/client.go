package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"trade-engine/internal/config"
)

// Client 封装 Binance USDⓈ-M 交易所访问。只读行情请求带退避重试，
// 下单请求永远只发一次：交易所侧不具备幂等性，盲目重试可能产生重复委托。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Binanceusdm
}

// NewClient 构造 Binance USDⓈ-M 客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
		logger.Info("已启用交易所沙盒环境")
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// Raw 返回底层 ccxt 客户端。
func (c *Client) Raw() *ccxt.Binanceusdm {
	return c.exchange
}

// FetchMarkets 拉取全部市场定义，供元数据缓存一次性消费。
func (c *Client) FetchMarkets(ctx context.Context) ([]ccxt.MarketInterface, error) {
	var markets []ccxt.MarketInterface

	err := c.callWithRetry(ctx, "fetch_markets", func() error {
		result, err := c.exchange.FetchMarkets()
		if err != nil {
			return err
		}
		markets = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return markets, nil
}

// FetchLastPrice 获取指定交易对的最新成交价。
func (c *Client) FetchLastPrice(ctx context.Context, symbol string) (float64, error) {
	var last float64

	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		ticker, err := c.exchange.FetchTicker(symbol)
		if err != nil {
			return err
		}
		if ticker.Last == nil {
			return fmt.Errorf("交易对 %s 的行情缺少最新价", symbol)
		}
		last = *ticker.Last
		return nil
	})
	if err != nil {
		return 0, err
	}

	return last, nil
}

// SubmitOrder 向交易所提交一笔委托。每次调用至多产生一笔交易所订单，
// 失败时归类为 RejectionError 或 TransportError 返回，绝不静默吞掉。
func (c *Client) SubmitOrder(ctx context.Context, intent OrderIntent) (OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return OrderResult{}, err
	}

	start := time.Now()
	raw, err := c.createOrder(intent)
	latency := time.Since(start)

	if err != nil {
		classified := classifyOrderError(err)
		c.logger.Error("下单失败",
			append(intentFields(intent),
				zap.Duration("latency", latency),
				zap.Error(classified),
			)...,
		)
		return OrderResult{}, classified
	}

	result := convertOrder(raw)
	c.logger.Info("订单已提交",
		append(intentFields(intent),
			zap.String("order_id", result.OrderID),
			zap.String("status", result.Status),
			zap.Duration("latency", latency),
		)...,
	)

	return result, nil
}

func (c *Client) createOrder(intent OrderIntent) (ccxt.Order, error) {
	side := string(intent.Side)
	qty := intent.Quantity.InexactFloat64()

	switch intent.Kind {
	case KindMarket:
		params := map[string]interface{}{}
		if intent.ReduceOnly {
			params["reduceOnly"] = true
		}
		var opts []ccxt.CreateMarketOrderOptions
		if len(params) > 0 {
			opts = append(opts, ccxt.WithCreateMarketOrderParams(params))
		}
		return c.exchange.CreateMarketOrder(intent.Symbol, side, qty, opts...)

	case KindLimit:
		if intent.Price == nil {
			return ccxt.Order{}, errors.New("限价单缺少价格")
		}
		params := map[string]interface{}{
			"timeInForce": timeInForceOrDefault(intent.TimeInForce),
		}
		if intent.ReduceOnly {
			params["reduceOnly"] = true
		}
		return c.exchange.CreateLimitOrder(intent.Symbol, side, qty, intent.Price.InexactFloat64(),
			ccxt.WithCreateLimitOrderParams(params))

	case KindStopLimit:
		if intent.Price == nil || intent.TriggerPrice == nil {
			return ccxt.Order{}, errors.New("止损限价单缺少触发价或限价")
		}
		params := map[string]interface{}{
			"stopPrice":   intent.TriggerPrice.InexactFloat64(),
			"timeInForce": timeInForceOrDefault(intent.TimeInForce),
		}
		if intent.ReduceOnly {
			params["reduceOnly"] = true
		}
		return c.exchange.CreateOrder(intent.Symbol, "limit", side, qty,
			ccxt.WithCreateOrderPrice(intent.Price.InexactFloat64()),
			ccxt.WithCreateOrderParams(params))

	case KindTakeProfit:
		if intent.TriggerPrice == nil {
			return ccxt.Order{}, errors.New("止盈单缺少触发价")
		}
		params := map[string]interface{}{
			"takeProfitPrice": intent.TriggerPrice.InexactFloat64(),
		}
		if intent.ReduceOnly {
			params["reduceOnly"] = true
		}
		return c.exchange.CreateMarketOrder(intent.Symbol, side, qty,
			ccxt.WithCreateMarketOrderParams(params))

	case KindStopMarket:
		if intent.TriggerPrice == nil {
			return ccxt.Order{}, errors.New("止损单缺少触发价")
		}
		params := map[string]interface{}{
			"stopLossPrice": intent.TriggerPrice.InexactFloat64(),
		}
		if intent.ReduceOnly {
			params["reduceOnly"] = true
		}
		return c.exchange.CreateMarketOrder(intent.Symbol, side, qty,
			ccxt.WithCreateMarketOrderParams(params))

	default:
		return ccxt.Order{}, fmt.Errorf("不支持的委托类型: %s", intent.Kind)
	}
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		if !isRetryableFetch(err) || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(err),
			)
			return err
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func timeInForceOrDefault(tif string) string {
	if tif == "" {
		return "GTC"
	}
	return tif
}

func convertOrder(order ccxt.Order) OrderResult {
	result := OrderResult{Raw: order.Info}
	if order.Id != nil {
		result.OrderID = *order.Id
	}
	if order.ClientOrderId != nil {
		result.ClientOrderID = *order.ClientOrderId
	}
	if order.Status != nil {
		result.Status = *order.Status
	}
	return result
}

func intentFields(intent OrderIntent) []zap.Field {
	fields := []zap.Field{
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.String("kind", string(intent.Kind)),
		zap.String("quantity", intent.Quantity.String()),
	}
	if intent.Price != nil {
		fields = append(fields, zap.String("price", intent.Price.String()))
	}
	if intent.TriggerPrice != nil {
		fields = append(fields, zap.String("trigger_price", intent.TriggerPrice.String()))
	}
	if intent.ReduceOnly {
		fields = append(fields, zap.Bool("reduce_only", true))
	}
	return fields
}
