// internal/service/checkout/application/session.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/pkg/metrics"
	"glimmer/internal/service/checkout/domain"
)

// Session 是一个买家会话的购物车、已用优惠券与结账进度。
// 每个请求通过 Sessions.Open 载入一个实例；实例本身不是并发安全的。
type Session struct {
	id     string
	userID string

	cart     *domain.Cart
	applied  *domain.AppliedCoupon
	coupon   *domain.Coupon // applied 对应的最新券记录，查不到时为 nil
	checkout domain.CheckoutState

	store   domain.SessionStore
	warning error
	// detached 为 true 表示载入失败，内存状态与存储不一致，不能覆盖写入
	detached bool
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Items 当前购物车行
func (s *Session) Items() []domain.LineItem { return s.cart.Items() }

func (s *Session) Checkout() domain.CheckoutState { return s.checkout }

func (s *Session) AppliedCoupon() *domain.AppliedCoupon { return s.applied }

// Totals 每次读取都用当前购物车和券记录重新计算
func (s *Session) Totals() domain.Totals {
	return domain.ComputeDiscount(s.cart, s.coupon)
}

// Facts 步骤守卫所需数据
func (s *Session) Facts() domain.CheckoutFacts {
	return domain.CheckoutFacts{
		CartEmpty:     s.cart.IsEmpty(),
		Authenticated: s.userID != "",
		State:         s.checkout,
	}
}

// Warning 返回最近一次持久化失败，类别为 PersistenceWarning
func (s *Session) Warning() error { return s.warning }

func (s *Session) AddItem(ctx context.Context, product domain.ProductRef, quantity int) {
	s.cart.AddItem(product, quantity)
	s.persist(ctx)
}

func (s *Session) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.cart.UpdateQuantity(productID, quantity)
	s.persist(ctx)
}

func (s *Session) RemoveItem(ctx context.Context, productID string) {
	s.cart.RemoveItem(productID)
	s.persist(ctx)
}

// Clear 清空购物车、优惠券和结账进度，并删除两条持久化记录
func (s *Session) Clear(ctx context.Context) {
	s.cart.Clear()
	s.applied, s.coupon = nil, nil
	s.checkout = domain.CheckoutState{}
	if err := s.store.Delete(ctx, s.id); err != nil {
		s.warn(ctx, "delete", err)
		return
	}
	// 记录已删除，存储与内存重新一致
	s.detached = false
	s.warning = nil
}

func (s *Session) setCoupon(ctx context.Context, c *domain.Coupon) {
	if c == nil {
		s.applied, s.coupon = nil, nil
	} else {
		s.applied = &domain.AppliedCoupon{ID: c.ID, Code: c.Code}
		s.coupon = c
	}
	s.persist(ctx)
}

func (s *Session) setShipping(ctx context.Context, addr domain.Address) {
	s.checkout.ShippingAddress = &addr
	s.persist(ctx)
}

func (s *Session) setPayment(ctx context.Context, method string) {
	s.checkout.PaymentMethod = method
	s.persist(ctx)
}

func (s *Session) records() domain.SessionRecords {
	return domain.SessionRecords{
		Cart:     domain.CartRecord{Items: s.cart.Items(), Coupon: s.applied},
		Checkout: s.checkout,
	}
}

// persist 整体覆盖写入；失败只记录警告，不回滚内存中的变更。
// 载入失败的会话只在内存中变更，保留载入时的警告。
func (s *Session) persist(ctx context.Context) {
	if s.detached {
		logger.Ctx(ctx).Warn().Str("session_id", s.id).Msg("session not loaded, skipping save")
		return
	}
	if err := s.store.Save(ctx, s.id, s.records()); err != nil {
		s.warn(ctx, "save", err)
		return
	}
	s.warning = nil
}

func (s *Session) warn(ctx context.Context, op string, err error) {
	s.warning = domain.NewError(domain.KindPersistenceWarning, "session "+op+" failed", err)
	metrics.PersistenceWarnings.Inc()
	logger.Ctx(ctx).Warn().Err(err).Str("session_id", s.id).Str("op", op).Msg("session persistence failed")
}

// Sessions 负责载入会话并恢复已用优惠券
type Sessions struct {
	store   domain.SessionStore
	coupons domain.CouponRepository
	now     func() time.Time
	tracer  trace.Tracer
}

func NewSessions(store domain.SessionStore, coupons domain.CouponRepository, tracer trace.Tracer) *Sessions {
	return &Sessions{store: store, coupons: coupons, now: time.Now, tracer: tracer}
}

// WithClock 替换时间来源，测试使用
func (m *Sessions) WithClock(now func() time.Time) *Sessions {
	m.now = now
	return m
}

// Open 载入会话。存储读取失败时以空会话继续并记录警告，
// 该会话不会写回存储，避免覆盖未能读取的记录。
// 已用优惠券会重新查询并校验，失效的券被移除。
func (m *Sessions) Open(ctx context.Context, sessionID, userID string) *Session {
	ctx, span := m.tracer.Start(ctx, "session.Open")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID), attribute.String("user.id", userID))

	s := &Session{id: sessionID, userID: userID, cart: &domain.Cart{}, store: m.store}

	rec, err := m.store.Load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		s.warn(ctx, "load", err)
		s.detached = true
		return s
	}
	s.cart = domain.NewCart(rec.Cart.Items)
	s.checkout = rec.Checkout
	if rec.Cart.Coupon == nil {
		return s
	}

	s.applied = rec.Cart.Coupon
	coupon, err := m.coupons.FindByCode(ctx, rec.Cart.Coupon.Code)
	switch {
	case errors.Is(err, domain.ErrCouponNotFound):
		logger.Ctx(ctx).Info().Str("coupon", rec.Cart.Coupon.Code).Msg("applied coupon no longer exists, dropping")
		s.setCoupon(ctx, nil)
	case err != nil:
		// 券库不可用时保留券码，折扣暂按0计算，下单时会再次校验
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Str("coupon", rec.Cart.Coupon.Code).Msg("failed to refresh applied coupon")
	case coupon.ID != rec.Cart.Coupon.ID:
		logger.Ctx(ctx).Info().Str("coupon", coupon.Code).Msg("applied coupon was replaced, dropping")
		s.setCoupon(ctx, nil)
	default:
		if verr := coupon.Validate(m.now()); verr != nil {
			logger.Ctx(ctx).Info().Err(verr).Str("coupon", coupon.Code).Msg("applied coupon is no longer valid, dropping")
			s.setCoupon(ctx, nil)
			break
		}
		s.coupon = coupon
	}
	return s
}
