// internal/service/checkout/domain/order.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusPending = "Pending"

// OrderItem 下单时的行快照，名称与单价脱离实时目录
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	ItemPrice   decimal.Decimal `json:"itemPrice"`
}

// Order 成功结账的最终产物，写入后不可变
type Order struct {
	ID              string
	UserID          string
	OrderDate       time.Time
	Status          string
	SubTotal        decimal.Decimal
	CouponCode      string
	CouponDiscount  decimal.Decimal
	TotalAmount     decimal.Decimal
	ShippingAddress Address
	PaymentMethod   string
	Items           []OrderItem
}

// NewOrder 从购物车、结账状态与已计算的金额生成订单快照，ID 由账本分配
func NewOrder(userID string, cart *Cart, state CheckoutState, totals Totals, now time.Time) *Order {
	o := &Order{
		UserID:         userID,
		OrderDate:      now,
		Status:         OrderStatusPending,
		SubTotal:       totals.Subtotal,
		CouponCode:     totals.CouponCode,
		CouponDiscount: totals.Discount,
		TotalAmount:    totals.Total,
		PaymentMethod:  state.PaymentMethod,
	}
	if state.ShippingAddress != nil {
		o.ShippingAddress = *state.ShippingAddress
	}
	for _, it := range cart.Items() {
		o.Items = append(o.Items, OrderItem{
			ProductID:   it.Product.ID,
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			ItemPrice:   it.Product.Price,
		})
	}
	return o
}

// OrderPlaced 下单成功后发布的事件
type OrderPlaced struct {
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CouponCode  string          `json:"couponCode,omitempty"`
	ItemCount   int             `json:"itemCount"`
	PlacedAt    time.Time       `json:"placedAt"`
}
