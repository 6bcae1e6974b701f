package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponModel 对应数据库中的 coupons 表
type CouponModel struct {
	ID                 uint   `gorm:"primaryKey"`
	Code               string `gorm:"size:64;uniqueIndex"`
	DiscountPercentage int
	StartDate          time.Time
	EndDate            time.Time
	// ApplicableProductIDs 逗号分隔，空表示全场
	ApplicableProductIDs string `gorm:"type:text"`
	UsageLimit           int
	TimesUsed            int
	// condition 是 MySQL 保留字，列名换成 condition_expr
	Condition string `gorm:"column:condition_expr;type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CouponModel) TableName() string {
	return "coupons"
}

// AddressColumns 订单表中内嵌的收货地址列
type AddressColumns struct {
	FullName   string `gorm:"size:128"`
	Email      string `gorm:"size:255"`
	Phone      string `gorm:"size:32"`
	Line1      string `gorm:"size:255"`
	City       string `gorm:"size:128"`
	PostalCode string `gorm:"size:32"`
	Country    string `gorm:"size:64"`
}

// OrderModel 对应 orders 表，只追加
type OrderModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	UserID          string `gorm:"size:64;index"`
	OrderDate       time.Time
	Status          string           `gorm:"size:32"`
	SubTotal        decimal.Decimal  `gorm:"type:decimal(12,2)"`
	CouponCode      string           `gorm:"size:64"`
	CouponDiscount  decimal.Decimal  `gorm:"type:decimal(12,2)"`
	TotalAmount     decimal.Decimal  `gorm:"type:decimal(12,2)"`
	ShippingAddress AddressColumns   `gorm:"embedded;embeddedPrefix:ship_"`
	PaymentMethod   string           `gorm:"size:32"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表，名称与单价为下单时快照
type OrderItemModel struct {
	ID          uint   `gorm:"primaryKey"`
	OrderID     string `gorm:"size:36;index"`
	ProductID   string `gorm:"size:64"`
	ProductName string `gorm:"size:255"`
	Quantity    int
	ItemPrice   decimal.Decimal `gorm:"type:decimal(12,2)"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}
