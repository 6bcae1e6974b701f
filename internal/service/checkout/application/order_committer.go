// internal/service/checkout/application/order_committer.go
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

// OrderCommitter 结账终点：核销优惠券、写入订单、清空会话。
// 两次写入不在同一事务中，券已+1但订单写入失败时不回滚，只记录。
type OrderCommitter struct {
	coupons    domain.CouponRepository
	ledger     domain.OrderLedger
	events     domain.OrderEvents
	lock       domain.RedemptionLock
	conditions domain.ConditionEvaluator
	timeout    time.Duration
	now        func() time.Time
	tracer     trace.Tracer
}

// CommitterOption 可选依赖
type CommitterOption func(*OrderCommitter)

func WithOrderEvents(e domain.OrderEvents) CommitterOption {
	return func(c *OrderCommitter) { c.events = e }
}

func WithRedemptionLock(l domain.RedemptionLock) CommitterOption {
	return func(c *OrderCommitter) { c.lock = l }
}

func WithConditions(ev domain.ConditionEvaluator) CommitterOption {
	return func(c *OrderCommitter) { c.conditions = ev }
}

func WithCommitTimeout(d time.Duration) CommitterOption {
	return func(c *OrderCommitter) { c.timeout = d }
}

func WithCommitClock(now func() time.Time) CommitterOption {
	return func(c *OrderCommitter) { c.now = now }
}

func NewOrderCommitter(coupons domain.CouponRepository, ledger domain.OrderLedger, tracer trace.Tracer, opts ...CommitterOption) *OrderCommitter {
	c := &OrderCommitter{
		coupons: coupons,
		ledger:  ledger,
		lock:    domain.NoopRedemptionLock{},
		now:     time.Now,
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceOrder 按顺序执行：前置检查 -> 券重新校验并+1 -> 写订单 -> 清空会话 -> 发布事件。
// 写入失败时会话保持不变，买家可以直接重试。
func (c *OrderCommitter) PlaceOrder(ctx context.Context, sess *Session) (*PlaceOrderResult, error) {
	ctx, span := c.tracer.Start(ctx, "service.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.ID()), attribute.String("user.id", sess.UserID()))

	fail := func(err error) (*PlaceOrderResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// 1. 前置条件，不满足时不做任何写入
	if res := domain.ResolveStep(domain.StepSummary, sess.Facts()); res.Redirected() {
		metrics.OrderFailures.WithLabelValues("precondition").Inc()
		return fail(incomplete(res))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// 2. 券的重新校验与核销
	var coupon *domain.Coupon
	if applied := sess.AppliedCoupon(); applied != nil {
		release, err := c.lock.Acquire(ctx, applied.ID)
		if err != nil {
			metrics.OrderFailures.WithLabelValues("redemption_lock").Inc()
			return fail(domain.NewError(domain.KindOrderPlacementFailed, "could not lock coupon "+applied.Code, err))
		}
		defer release()

		coupon, err = c.refreshCoupon(ctx, sess, applied)
		if err != nil {
			metrics.OrderFailures.WithLabelValues("coupon_validation").Inc()
			return fail(err)
		}
	}

	totals := domain.ComputeDiscount(sess.cart, coupon)
	order := domain.NewOrder(sess.UserID(), sess.cart, sess.Checkout(), totals, c.now().UTC())

	if coupon != nil {
		if err := c.coupons.IncrementUsage(ctx, coupon.ID); err != nil {
			metrics.OrderFailures.WithLabelValues("coupon_increment").Inc()
			logger.Ctx(ctx).Error().Err(err).Int64("coupon_id", coupon.ID).Msg("failed to increment coupon usage")
			return fail(domain.NewError(domain.KindOrderPlacementFailed, "could not redeem coupon "+coupon.Code, err))
		}
	}

	// 3. 写入订单快照
	orderID, err := c.ledger.Create(ctx, order)
	if err != nil {
		if coupon != nil {
			metrics.OrderFailures.WithLabelValues("order_write_after_redeem").Inc()
			logger.Ctx(ctx).Error().Err(err).
				Int64("coupon_id", coupon.ID).
				Str("user_id", sess.UserID()).
				Msg("coupon usage incremented but order write failed, counter not rolled back")
		} else {
			metrics.OrderFailures.WithLabelValues("order_write").Inc()
			logger.Ctx(ctx).Error().Err(err).Str("user_id", sess.UserID()).Msg("failed to write order")
		}
		return fail(domain.NewError(domain.KindOrderPlacementFailed, "could not save order", err))
	}
	order.ID = orderID
	span.SetAttributes(attribute.String("order.id", orderID))

	// 4. 成功：清空会话
	sess.Clear(ctx)
	metrics.OrdersPlaced.Inc()
	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("total", domain.FormatMoney(order.TotalAmount)).
		Msg("order placed")

	c.publish(ctx, order)

	return &PlaceOrderResult{OrderID: orderID, Totals: totals, Warning: sess.Warning()}, nil
}

// refreshCoupon 下单前重新读取券记录，客户端缓存的折扣率不被信任
func (c *OrderCommitter) refreshCoupon(ctx context.Context, sess *Session, applied *domain.AppliedCoupon) (*domain.Coupon, error) {
	coupon, err := c.coupons.FindByCode(ctx, applied.Code)
	if err != nil {
		if _, typed := domain.KindOf(err); typed {
			return nil, err
		}
		return nil, domain.NewError(domain.KindOrderPlacementFailed, "could not load coupon "+applied.Code, err)
	}
	if coupon.ID != applied.ID {
		return nil, domain.ErrCouponNotFound
	}
	if err := coupon.Validate(c.now()); err != nil {
		return nil, err
	}
	if err := evaluateCondition(ctx, c.conditions, coupon, sess.cart, sess.UserID()); err != nil {
		return nil, err
	}
	return coupon, nil
}

// publish 尽力而为，失败只记录
func (c *OrderCommitter) publish(ctx context.Context, order *domain.Order) {
	if c.events == nil {
		return
	}
	count := 0
	for _, it := range order.Items {
		count += it.Quantity
	}
	evt := domain.OrderPlaced{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		CouponCode:  order.CouponCode,
		ItemCount:   count,
		PlacedAt:    order.OrderDate,
	}
	if err := c.events.PublishOrderPlaced(ctx, evt); err != nil {
		metrics.OrderFailures.WithLabelValues("event_publish").Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).Msg("failed to publish OrderPlaced event")
	}
}
