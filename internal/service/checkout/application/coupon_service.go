// internal/service/checkout/application/coupon_service.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/pkg/metrics"
	"glimmer/internal/service/checkout/domain"
)

// CouponService 优惠码的应用与移除
type CouponService struct {
	coupons    domain.CouponRepository
	conditions domain.ConditionEvaluator
	now        func() time.Time
	tracer     trace.Tracer
}

// NewCouponService conditions 可以为 nil，此时忽略券上的条件表达式
func NewCouponService(coupons domain.CouponRepository, conditions domain.ConditionEvaluator, tracer trace.Tracer) *CouponService {
	return &CouponService{coupons: coupons, conditions: conditions, now: time.Now, tracer: tracer}
}

func (s *CouponService) WithClock(now func() time.Time) *CouponService {
	s.now = now
	return s
}

// ApplyCoupon 按规范码查找、校验并设置为会话当前券，返回重新计算的金额。
// 任一校验失败时会话不变。
func (s *CouponService) ApplyCoupon(ctx context.Context, sess *Session, code string) (domain.Totals, error) {
	ctx, span := s.tracer.Start(ctx, "service.ApplyCoupon")
	defer span.End()

	code = domain.CanonicalCouponCode(code)
	span.SetAttributes(attribute.String("coupon.code", code), attribute.String("session.id", sess.ID()))

	coupon, err := s.check(ctx, sess, code)
	if err != nil {
		kind, _ := domain.KindOf(err)
		metrics.CouponRejections.WithLabelValues(string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Info().Err(err).Str("coupon", code).Msg("coupon rejected")
		return sess.Totals(), err
	}

	sess.setCoupon(ctx, coupon)
	totals := sess.Totals()
	logger.Ctx(ctx).Info().
		Str("coupon", code).
		Str("discount", domain.FormatMoney(totals.Discount)).
		Msg("coupon applied")
	return totals, nil
}

// check 只读，不修改会话
func (s *CouponService) check(ctx context.Context, sess *Session, code string) (*domain.Coupon, error) {
	if code == "" {
		return nil, domain.ErrCouponNotFound
	}
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, domain.Unavailable("could not look up coupon "+code, err)
	}
	if err := coupon.Validate(s.now()); err != nil {
		return nil, err
	}
	if err := evaluateCondition(ctx, s.conditions, coupon, sess.cart, sess.UserID()); err != nil {
		return nil, err
	}
	return coupon, nil
}

// RemoveCoupon 无条件移除当前券
func (s *CouponService) RemoveCoupon(ctx context.Context, sess *Session) domain.Totals {
	ctx, span := s.tracer.Start(ctx, "service.RemoveCoupon")
	defer span.End()
	sess.setCoupon(ctx, nil)
	return sess.Totals()
}

func evaluateCondition(ctx context.Context, ev domain.ConditionEvaluator, c *domain.Coupon, cart *domain.Cart, userID string) error {
	if ev == nil || c.Condition == "" {
		return nil
	}
	ok, err := ev.Evaluate(ctx, c.Condition, domain.ConditionInput{
		Subtotal:   cart.Subtotal(),
		ItemCount:  cart.Count(),
		UserID:     userID,
		ProductIDs: cart.ProductIDs(),
	})
	if err != nil {
		return domain.NewError(domain.KindCouponNotApplicable, "coupon "+c.Code+" condition could not be evaluated", err)
	}
	if !ok {
		return &domain.Error{Kind: domain.KindCouponNotApplicable, Message: "coupon " + c.Code + " does not apply to this cart"}
	}
	return nil
}
