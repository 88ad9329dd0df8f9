package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrUnknownSymbol 表示元数据中不存在请求的交易对。
	ErrUnknownSymbol = errors.New("symbol not found in exchange metadata")
)

// RejectionError 表示交易所返回的结构化业务拒绝，例如保证金不足或合约停牌。
// 不更改订单参数时重试没有意义。
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("exchange rejected order (%s): %s", e.Code, e.Message)
}

// TransportError 表示网络、超时或响应异常等传输层失败。
// 此类错误可能是暂时的，但重试下单可能造成重复委托，由调用方自行决策。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("exchange transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyOrderError 将下单失败归类为拒绝或传输错误，context 错误原样透传。
func classifyOrderError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return &TransportError{Err: err}
		default:
			return &RejectionError{
				Code:    fmt.Sprint(ccxtErr.Type),
				Message: ccxtErr.Message,
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransportError{Err: err}
	}

	return &TransportError{Err: err}
}

// isRetryableFetch 判断只读行情请求是否值得重试，下单路径不使用该判定。
func isRetryableFetch(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
