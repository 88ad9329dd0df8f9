package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-engine/internal/ai"
	"trade-engine/internal/exchange"
	"trade-engine/internal/monitor"
	"trade-engine/internal/strategy"
	"trade-engine/internal/validate"
)

type symbolSource interface {
	Symbols(ctx context.Context) ([]string, error)
	FetchedAt() time.Time
}

type priceSource interface {
	FetchLastPrice(ctx context.Context, symbol string) (float64, error)
}

type serverDeps struct {
	engine    strategy.Engine
	symbols   symbolSource
	prices    priceSource
	monitor   *monitor.Service
	rationale *ai.Client
	logger    *zap.Logger
}

func newServer(deps serverDeps, port int) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", deps.handleHealth)
	mux.HandleFunc("GET /assets", deps.handleAssets)
	mux.HandleFunc("GET /price", deps.handlePrice)
	mux.HandleFunc("POST /trade", deps.handleTrade)
	mux.HandleFunc("POST /rationale", deps.handleRationale)
	mux.HandleFunc("GET /events", deps.handleEvents)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (d serverDeps) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"metadata_fetched_at": d.symbols.FetchedAt().Format(time.RFC3339),
	}, d.logger)
}

func (d serverDeps) handleAssets(w http.ResponseWriter, r *http.Request) {
	symbols, err := d.symbols.Symbols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, d.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols}, d.logger)
}

func (d serverDeps) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("缺少 symbol 参数"), d.logger)
		return
	}

	price, err := d.prices.FetchLastPrice(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err, d.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
	}, d.logger)
}

// tradeRequest 为 /trade 的统一请求体，按 strategy 字段路由。
// 非类型化请求到类型化策略参数的映射只存在于这一层。
type tradeRequest struct {
	Strategy        string           `json:"strategy"`
	Symbol          string           `json:"symbol"`
	Side            string           `json:"side"`
	Amount          decimal.Decimal  `json:"amount"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	TimeInForce     string           `json:"time_in_force,omitempty"`
	StopPrice       *decimal.Decimal `json:"stop_price,omitempty"`
	LimitPrice      *decimal.Decimal `json:"limit_price,omitempty"`
	TakeProfit      *decimal.Decimal `json:"take_profit,omitempty"`
	StopLoss        *decimal.Decimal `json:"stop_loss,omitempty"`
	DurationMinutes int              `json:"duration_minutes,omitempty"`
	IntervalSeconds int              `json:"interval_seconds,omitempty"`
	LowerBound      *decimal.Decimal `json:"lower_bound,omitempty"`
	UpperBound      *decimal.Decimal `json:"upper_bound,omitempty"`
	NumLevels       int              `json:"num_levels,omitempty"`
}

func (d serverDeps) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("解析请求失败: %w", err), d.logger)
		return
	}

	outcome, err := d.dispatch(r.Context(), req)

	if len(outcome.Steps) > 0 || err != nil {
		d.monitor.RecordOutcome(r.Context(), outcome)
	}

	record := monitor.NewOutcomeRecord(outcome)
	if err != nil {
		status := http.StatusBadGateway
		if validate.IsValidationError(err) || errors.Is(err, strategy.ErrAborted) || isBadRequest(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]interface{}{
			"status":  "error",
			"error":   err.Error(),
			"outcome": record,
		}, d.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"outcome": record,
	}, d.logger)
}

var errBadRequest = errors.New("bad request")

func isBadRequest(err error) bool {
	return errors.Is(err, errBadRequest)
}

func (d serverDeps) dispatch(ctx context.Context, req tradeRequest) (strategy.Outcome, error) {
	if req.Symbol == "" {
		return strategy.Outcome{}, fmt.Errorf("%w: 缺少 symbol", errBadRequest)
	}

	side, err := parseSide(req.Side)
	if err != nil && requiresSide(req.Strategy) {
		return strategy.Outcome{}, err
	}

	switch req.Strategy {
	case "market":
		return d.engine.Market(ctx, strategy.MarketParams{
			Symbol:   req.Symbol,
			Side:     side,
			Quantity: req.Amount,
		})

	case "limit":
		if req.Price == nil {
			return strategy.Outcome{}, fmt.Errorf("%w: 限价策略缺少 price", errBadRequest)
		}
		return d.engine.Limit(ctx, strategy.LimitParams{
			Symbol:      req.Symbol,
			Side:        side,
			Quantity:    req.Amount,
			Price:       *req.Price,
			TimeInForce: strings.ToUpper(req.TimeInForce),
		})

	case "stop_limit":
		if req.StopPrice == nil || req.LimitPrice == nil {
			return strategy.Outcome{}, fmt.Errorf("%w: 止损限价策略缺少 stop_price 或 limit_price", errBadRequest)
		}
		return d.engine.StopLimit(ctx, strategy.StopLimitParams{
			Symbol:      req.Symbol,
			Side:        side,
			Quantity:    req.Amount,
			StopPrice:   *req.StopPrice,
			LimitPrice:  *req.LimitPrice,
			TimeInForce: strings.ToUpper(req.TimeInForce),
		})

	case "bracket":
		if req.TakeProfit == nil || req.StopLoss == nil {
			return strategy.Outcome{}, fmt.Errorf("%w: 括号策略缺少 take_profit 或 stop_loss", errBadRequest)
		}
		return d.engine.Bracket(ctx, strategy.BracketParams{
			Symbol:     req.Symbol,
			Side:       side,
			Quantity:   req.Amount,
			TakeProfit: *req.TakeProfit,
			StopLoss:   *req.StopLoss,
		})

	case "twap":
		if req.DurationMinutes <= 0 || req.IntervalSeconds <= 0 {
			return strategy.Outcome{}, fmt.Errorf("%w: TWAP 策略缺少 duration_minutes 或 interval_seconds", errBadRequest)
		}
		return d.engine.TWAP(ctx, strategy.TWAPParams{
			Symbol:        req.Symbol,
			Side:          side,
			TotalQuantity: req.Amount,
			Duration:      time.Duration(req.DurationMinutes) * time.Minute,
			Interval:      time.Duration(req.IntervalSeconds) * time.Second,
		})

	case "grid":
		if req.LowerBound == nil || req.UpperBound == nil {
			return strategy.Outcome{}, fmt.Errorf("%w: 网格策略缺少 lower_bound 或 upper_bound", errBadRequest)
		}
		return d.engine.Grid(ctx, strategy.GridParams{
			Symbol:           req.Symbol,
			QuantityPerLevel: req.Amount,
			LowerBound:       *req.LowerBound,
			UpperBound:       *req.UpperBound,
			NumLevels:        req.NumLevels,
			TimeInForce:      strings.ToUpper(req.TimeInForce),
		})

	default:
		return strategy.Outcome{}, fmt.Errorf("%w: 未知策略 %q", errBadRequest, req.Strategy)
	}
}

func requiresSide(strategyName string) bool {
	return strategyName != "grid"
}

func parseSide(raw string) (exchange.Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return exchange.SideBuy, nil
	case "sell":
		return exchange.SideSell, nil
	default:
		return "", fmt.Errorf("%w: side 取值非法 %q", errBadRequest, raw)
	}
}

type rationaleRequest struct {
	Strategy string          `json:"strategy"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
}

func (d serverDeps) handleRationale(w http.ResponseWriter, r *http.Request) {
	if d.rationale == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("OpenAI API key 未配置"), d.logger)
		return
	}

	var req rationaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("解析请求失败: %w", err), d.logger)
		return
	}

	text, err := d.rationale.GenerateRationale(r.Context(), ai.TradeSummary{
		Strategy: req.Strategy,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Amount.String(),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err, d.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"rationale": text,
	}, d.logger)
}

func (d serverDeps) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 200
	if qs := q.Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := monitor.EventType("")
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		eventType = monitor.EventType(strings.ToLower(typ))
	}

	events, err := d.monitor.ListEvents(r.Context(), eventType, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, d.logger)
		return
	}
	writeJSON(w, http.StatusOK, events, d.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Warn("写入HTTP响应失败", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  err.Error(),
	}, logger)
}
