// internal/service/checkout/domain/product.go
package domain

import "github.com/shopspring/decimal"

// ProductRef 是加入购物车时从商品目录拍下的快照。
// 价格在加入时确定，之后不再与目录核对。
type ProductRef struct {
	ID       string          `json:"id"`
	Slug     string          `json:"slug,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category,omitempty"`
	Images   []string        `json:"images,omitempty"`
}
