// internal/service/checkout/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 是对展示层暴露的错误类别
type ErrorKind string

const (
	KindCouponNotFound       ErrorKind = "CouponNotFound"
	KindCouponInactive       ErrorKind = "CouponInactive"
	KindCouponLimitReached   ErrorKind = "CouponLimitReached"
	KindCouponNotApplicable  ErrorKind = "CouponNotApplicable"
	KindIncompleteCheckout   ErrorKind = "IncompleteCheckout"
	KindOrderPlacementFailed ErrorKind = "OrderPlacementFailed"
	KindPersistenceWarning   ErrorKind = "PersistenceWarning"
	KindInvalidCheckoutInput ErrorKind = "InvalidCheckoutInput"
	KindProductNotFound      ErrorKind = "ProductNotFound"
	// KindDependencyUnavailable 券库、商品目录等下游暂时不可用，可重试
	KindDependencyUnavailable ErrorKind = "DependencyUnavailable"
)

// Error 带类别的领域错误。errors.Is 按 Kind 匹配，因此带上下文的实例
// 也能与下面的哨兵错误比较。
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields 字段级校验信息，key 为字段名
	Fields map[string]string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrCouponNotFound        = &Error{Kind: KindCouponNotFound, Message: "coupon not found"}
	ErrCouponInactive        = &Error{Kind: KindCouponInactive, Message: "coupon is not active"}
	ErrCouponLimitReached    = &Error{Kind: KindCouponLimitReached, Message: "coupon usage limit reached"}
	ErrCouponNotApplicable   = &Error{Kind: KindCouponNotApplicable, Message: "coupon conditions not met"}
	ErrIncompleteCheckout    = &Error{Kind: KindIncompleteCheckout, Message: "checkout is incomplete"}
	ErrOrderPlacementFailed  = &Error{Kind: KindOrderPlacementFailed, Message: "order placement failed"}
	ErrPersistenceWarning    = &Error{Kind: KindPersistenceWarning, Message: "session state could not be persisted"}
	ErrInvalidCheckoutInput  = &Error{Kind: KindInvalidCheckoutInput, Message: "invalid checkout input"}
	ErrProductNotFound       = &Error{Kind: KindProductNotFound, Message: "product not found"}
	ErrDependencyUnavailable = &Error{Kind: KindDependencyUnavailable, Message: "dependency temporarily unavailable"}
)

// NewError 基于类别构造一个带消息和原因的错误
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Unavailable 把未分类的下游错误包装为 DependencyUnavailable，已分类的原样返回
func Unavailable(message string, err error) error {
	if _, typed := KindOf(err); typed {
		return err
	}
	return NewError(KindDependencyUnavailable, message, err)
}

// KindOf 返回错误链中第一个领域错误的类别
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
