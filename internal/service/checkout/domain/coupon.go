// internal/service/checkout/domain/coupon.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon 由订单账本持有，核心只读取并在核销时请求 TimesUsed+1
type Coupon struct {
	ID                   int64
	Code                 string // 大写规范形式，唯一
	DiscountPercentage   int    // 1..100
	StartDate            time.Time
	EndDate              time.Time
	ApplicableProductIDs []string // 空表示全场适用
	UsageLimit           int      // 0 表示不限
	TimesUsed            int
	// Condition 可选的 CEL 表达式，为空表示无附加条件
	Condition string
}

// AppliedCoupon 会话中持久化的只有 ID 和 Code，折扣率每次重新读取
type AppliedCoupon struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// CanonicalCouponCode 是优惠码唯一的规范化入口：去掉首尾空白并转大写
func CanonicalCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate 先检查有效期，再检查使用次数
func (c *Coupon) Validate(now time.Time) error {
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return &Error{Kind: KindCouponInactive, Message: "coupon " + c.Code + " is not active"}
	}
	if c.UsageLimit > 0 && c.TimesUsed >= c.UsageLimit {
		return &Error{Kind: KindCouponLimitReached, Message: "coupon " + c.Code + " has reached its usage limit"}
	}
	return nil
}

// AppliesTo 判断商品是否计入折扣基数
func (c *Coupon) AppliesTo(productID string) bool {
	if len(c.ApplicableProductIDs) == 0 {
		return true
	}
	for _, id := range c.ApplicableProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Totals 根据当前购物车与优惠券派生的金额
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ItemCount    int             `json:"itemCount"`
	DiscountBase decimal.Decimal `json:"discountBase"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	CouponCode   string          `json:"couponCode,omitempty"`
}

// ComputeDiscount 纯函数：coupon 为 nil 时折扣为0。
// 0 ≤ Discount ≤ DiscountBase ≤ Subtotal 恒成立。
func ComputeDiscount(cart *Cart, coupon *Coupon) Totals {
	t := Totals{
		Subtotal:     cart.Subtotal(),
		ItemCount:    cart.Count(),
		DiscountBase: decimal.Zero,
		Discount:     decimal.Zero,
	}
	if coupon != nil {
		t.CouponCode = coupon.Code
		for _, it := range cart.Items() {
			if coupon.AppliesTo(it.Product.ID) {
				t.DiscountBase = t.DiscountBase.Add(it.LineTotal())
			}
		}
		t.Discount = PercentOf(t.DiscountBase, coupon.DiscountPercentage)
	}
	t.Total = t.Subtotal.Sub(t.Discount)
	return t
}
