// internal/service/checkout/domain/money.go
package domain

import "github.com/shopspring/decimal"

// 最小货币单位：分
const currencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney 四舍五入（half-up）到分
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

// LineTotal 单价 × 数量
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// PercentOf 计算 base × pct / 100，结果被限制在 [0, base] 内
func PercentOf(base decimal.Decimal, pct int) decimal.Decimal {
	if base.Sign() <= 0 || pct <= 0 {
		return decimal.Zero
	}
	d := RoundMoney(base.Mul(decimal.NewFromInt(int64(pct))).Div(hundred))
	if d.GreaterThan(base) {
		return base
	}
	return d
}

// FormatMoney 以两位小数输出，用于日志与展示
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(currencyPlaces)
}
