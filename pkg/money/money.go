// Package money 金额计算。所有金额使用 decimal，按货币最小单位 (2 位小数) 舍入。
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale 金额小数位
const Scale = 2

var (
	Hundred = decimal.NewFromInt(100)

	ErrInvalidPercentage = errors.New("fee percentage must be between 0 and 100")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// Split 一笔毛收入的拆分结果，Fee + Net == Gross 恒成立
type Split struct {
	Gross      decimal.Decimal `json:"gross"`
	Percentage decimal.Decimal `json:"percentage"`
	Fee        decimal.Decimal `json:"fee"`
	Net        decimal.Decimal `json:"net"`
}

// Round 四舍五入到分
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// SplitFee 按百分比 (0-100) 拆分平台费。
// 平台费四舍五入到分，创作者收入取差值，保证守恒。
func SplitFee(gross, percentage decimal.Decimal) (Split, error) {
	if gross.IsNegative() {
		return Split{}, ErrNegativeAmount
	}
	if percentage.IsNegative() || percentage.GreaterThan(Hundred) {
		return Split{}, ErrInvalidPercentage
	}

	gross = Round(gross)
	fee := Round(gross.Mul(percentage).Div(Hundred))
	return Split{
		Gross:      gross,
		Percentage: percentage,
		Fee:        fee,
		Net:        gross.Sub(fee),
	}, nil
}

// ToMinorUnits 转换为最小货币单位 (cents)，Stripe 接口使用
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round(d).Shift(Scale).IntPart()
}

// FromMinorUnits cents -> decimal
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

// Sum 求和
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
