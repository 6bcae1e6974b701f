package application

import (
	"errors"

	"glimmer/internal/service/checkout/domain"
)

// PlaceOrderResult 下单成功的返回
type PlaceOrderResult struct {
	OrderID string        `json:"orderId"`
	Totals  domain.Totals `json:"totals"`
	// Warning 会话清理失败时非空，订单本身已成功
	Warning error `json:"-"`
}

// AddItemRequest 按 productId 或 slug 加入购物车
type AddItemRequest struct {
	ProductID string `json:"productId"`
	Slug      string `json:"slug"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequest 数量≤0 表示移除
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

type SelectPaymentRequest struct {
	Method string `json:"method"`
}

// CartView 购物车读取结果
type CartView struct {
	SessionID string                `json:"sessionId"`
	Items     []domain.LineItem     `json:"items"`
	Totals    domain.Totals         `json:"totals"`
	Coupon    *domain.AppliedCoupon `json:"coupon,omitempty"`
	Checkout  domain.CheckoutState  `json:"checkout"`
	Step      domain.Step           `json:"step"`
	Warning   string                `json:"warning,omitempty"`
}

// NewCartView 从会话生成只读视图
func NewCartView(s *Session) CartView {
	v := CartView{
		SessionID: s.ID(),
		Items:     s.Items(),
		Totals:    s.Totals(),
		Coupon:    s.AppliedCoupon(),
		Checkout:  s.Checkout(),
		Step:      domain.CurrentStep(s.Checkout()),
	}
	// 只展示类别消息，底层存储错误不返回给买家
	var derr *domain.Error
	if errors.As(s.Warning(), &derr) {
		v.Warning = derr.Message
	}
	return v
}

// StepView 步骤解析结果连同当前金额
type StepView struct {
	domain.Resolution
	Totals domain.Totals `json:"totals"`
}
