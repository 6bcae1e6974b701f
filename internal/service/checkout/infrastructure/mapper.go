package infrastructure

import (
	"strings"

	"glimmer/internal/service/checkout/domain"
)

// ToDomainCoupon 将数据库模型转换为领域模型
func ToDomainCoupon(m *CouponModel) *domain.Coupon {
	if m == nil {
		return nil
	}
	return &domain.Coupon{
		ID:                   int64(m.ID),
		Code:                 m.Code,
		DiscountPercentage:   m.DiscountPercentage,
		StartDate:            m.StartDate,
		EndDate:              m.EndDate,
		ApplicableProductIDs: splitIDs(m.ApplicableProductIDs),
		UsageLimit:           m.UsageLimit,
		TimesUsed:            m.TimesUsed,
		Condition:            m.Condition,
	}
}

// FromDomainCoupon 用于后台导入与测试数据准备
func FromDomainCoupon(c *domain.Coupon) *CouponModel {
	return &CouponModel{
		ID:                   uint(c.ID),
		Code:                 domain.CanonicalCouponCode(c.Code),
		DiscountPercentage:   c.DiscountPercentage,
		StartDate:            c.StartDate,
		EndDate:              c.EndDate,
		ApplicableProductIDs: strings.Join(c.ApplicableProductIDs, ","),
		UsageLimit:           c.UsageLimit,
		TimesUsed:            c.TimesUsed,
		Condition:            c.Condition,
	}
}

// FromDomainOrder 将订单快照转换为数据库模型
func FromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		OrderDate:      o.OrderDate,
		Status:         o.Status,
		SubTotal:       o.SubTotal,
		CouponCode:     o.CouponCode,
		CouponDiscount: o.CouponDiscount,
		TotalAmount:    o.TotalAmount,
		ShippingAddress: AddressColumns{
			FullName:   o.ShippingAddress.FullName,
			Email:      o.ShippingAddress.Email,
			Phone:      o.ShippingAddress.Phone,
			Line1:      o.ShippingAddress.Line1,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		PaymentMethod: o.PaymentMethod,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:     o.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			ItemPrice:   it.ItemPrice,
		})
	}
	return m
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
