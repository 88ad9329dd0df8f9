package validate

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"trade-engine/internal/exchange"
)

var (
	// ErrQuantityOutOfRange 表示数量越过交易对的最小或最大限制。
	ErrQuantityOutOfRange = errors.New("quantity out of range")
	// ErrQuantityStep 表示数量不落在步进网格上。
	ErrQuantityStep = errors.New("quantity step mismatch")
	// ErrPriceOutOfRange 表示价格越过交易对的最小或最大限制。
	ErrPriceOutOfRange = errors.New("price out of range")
	// ErrPriceTick 表示价格不落在最小跳动网格上。
	ErrPriceTick = errors.New("price tick mismatch")
)

// Check 按顺序校验候选委托，遇到第一个失败即返回对应的特定错误。
// 校验顺序：数量区间、数量步进、价格区间、价格跳动；price 为 nil
// 时（市价类委托）跳过全部价格检查。
//
// 步进与跳动是精确取模判断，必须使用十进制算术，二进制浮点会把
// 合法值误判为不合法。
func Check(filters exchange.SymbolFilters, quantity decimal.Decimal, price *decimal.Decimal) error {
	if quantity.LessThan(filters.MinQty) || quantity.GreaterThan(filters.MaxQty) {
		return fmt.Errorf("%w: quantity=%s min=%s max=%s",
			ErrQuantityOutOfRange, quantity, filters.MinQty, filters.MaxQty)
	}

	if filters.StepSize.IsPositive() {
		if !quantity.Sub(filters.MinQty).Mod(filters.StepSize).IsZero() {
			return fmt.Errorf("%w: quantity=%s step=%s",
				ErrQuantityStep, quantity, filters.StepSize)
		}
	}

	if price == nil {
		return nil
	}

	if price.LessThan(filters.MinPrice) || price.GreaterThan(filters.MaxPrice) {
		return fmt.Errorf("%w: price=%s min=%s max=%s",
			ErrPriceOutOfRange, price, filters.MinPrice, filters.MaxPrice)
	}

	if filters.TickSize.IsPositive() {
		if !price.Sub(filters.MinPrice).Mod(filters.TickSize).IsZero() {
			return fmt.Errorf("%w: price=%s tick=%s",
				ErrPriceTick, price, filters.TickSize)
		}
	}

	return nil
}

// IsValidationError 判断错误是否属于本地校验失败（含未知交易对），
// 这类错误在修改输入前重试没有意义。
func IsValidationError(err error) bool {
	return errors.Is(err, ErrQuantityOutOfRange) ||
		errors.Is(err, ErrQuantityStep) ||
		errors.Is(err, ErrPriceOutOfRange) ||
		errors.Is(err, ErrPriceTick) ||
		errors.Is(err, exchange.ErrUnknownSymbol)
}
