// internal/service/checkout/domain/cart.go
package domain

import "github.com/shopspring/decimal"

// LineItem 购物车中的一行：商品 + 数量（≥1）
type LineItem struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
}

// LineTotal 返回该行金额
func (li LineItem) LineTotal() decimal.Decimal {
	return LineTotal(li.Product.Price, li.Quantity)
}

// Cart 按商品ID唯一的行集合，保留加入顺序只为稳定展示。
// 零值即空购物车。
type Cart struct {
	items []LineItem
}

// NewCart 用已持久化的行恢复购物车，非法行（空ID、数量≤0）被丢弃，重复ID合并。
func NewCart(items []LineItem) *Cart {
	c := &Cart{}
	for _, it := range items {
		if it.Product.ID == "" || it.Quantity <= 0 {
			continue
		}
		c.AddItem(it.Product, it.Quantity)
	}
	return c
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddItem 已存在则累加数量，否则插入新行；新行数量最少为1
func (c *Cart) AddItem(product ProductRef, quantity int) {
	if i := c.indexOf(product.ID); i >= 0 {
		if quantity > 0 {
			c.items[i].Quantity += quantity
		}
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	c.items = append(c.items, LineItem{Product: product, Quantity: quantity})
}

// UpdateQuantity 设置数量；≤0 等同于 RemoveItem。
// 商品不在购物车中时无操作。
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	if i := c.indexOf(productID); i >= 0 {
		c.items[i].Quantity = quantity
	}
}

// RemoveItem 删除行，不存在时无操作
func (c *Cart) RemoveItem(productID string) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Clear 清空
func (c *Cart) Clear() {
	c.items = nil
}

// Items 返回行的副本
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Subtotal Σ(单价 × 数量)，每次读取时重新计算
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Count Σ(数量)
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) Contains(productID string) bool { return c.indexOf(productID) >= 0 }

// Quantity 返回商品数量，不存在时为0
func (c *Cart) Quantity(productID string) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

// ProductIDs 按顺序返回所有商品ID
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.items))
	for _, it := range c.items {
		ids = append(ids, it.Product.ID)
	}
	return ids
}
