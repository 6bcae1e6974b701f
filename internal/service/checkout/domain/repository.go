// internal/service/checkout/domain/repository.go
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// 以下接口位于领域层，由基础设施层实现。

// Catalog 只读商品目录，找不到时返回 ErrProductNotFound
type Catalog interface {
	FindByID(ctx context.Context, id string) (*ProductRef, error)
	FindBySlug(ctx context.Context, slug string) (*ProductRef, error)
}

// CouponRepository 找不到时返回 ErrCouponNotFound
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUsage 只做 times_used + 1
	IncrementUsage(ctx context.Context, couponID int64) error
}

// OrderLedger 只追加的订单账本，Create 分配并返回订单ID
type OrderLedger interface {
	Create(ctx context.Context, order *Order) (string, error)
}

// CartRecord 持久化的 "cart" 记录
type CartRecord struct {
	Items  []LineItem     `json:"items"`
	Coupon *AppliedCoupon `json:"coupon,omitempty"`
}

// SessionRecords 一个会话的两条持久化记录："cart" 与 "checkout"
type SessionRecords struct {
	Cart     CartRecord    `json:"cart"`
	Checkout CheckoutState `json:"checkout"`
}

// SessionStore 每次变更都整体覆盖写入；清空购物车时两条记录一起删除。
// 会话不存在时 Load 返回零值而不是错误。
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (SessionRecords, error)
	Save(ctx context.Context, sessionID string, records SessionRecords) error
	Delete(ctx context.Context, sessionID string) error
}

// OrderEvents 下单成功后的事件出口
type OrderEvents interface {
	PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error
}

// ConditionInput 优惠券条件表达式可见的变量
type ConditionInput struct {
	Subtotal   decimal.Decimal
	ItemCount  int
	UserID     string
	ProductIDs []string
}

// ConditionEvaluator 计算优惠券的附加条件
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, expr string, in ConditionInput) (bool, error)
}

// RedemptionLock 串行化同一张优惠券的核销，返回的释放函数必须被调用。
type RedemptionLock interface {
	Acquire(ctx context.Context, couponID int64) (func(), error)
}

// NoopRedemptionLock 不加锁，并发核销时使用次数可能超过上限
type NoopRedemptionLock struct{}

func (NoopRedemptionLock) Acquire(context.Context, int64) (func(), error) {
	return func() {}, nil
}
