package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/service/checkout/application"
	"glimmer/internal/service/checkout/domain"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "sid"
	maxBodyBytes  = 64 << 10
)

// CheckoutHandler 封装了购物车与结账的 HTTP 处理器
type CheckoutHandler struct {
	sessions   *application.Sessions
	coupons    *application.CouponService
	flow       *application.CheckoutFlow
	committer  *application.OrderCommitter
	catalog    domain.Catalog
	auth       *Authenticator
	sessionTTL time.Duration
}

func NewCheckoutHandler(
	sessions *application.Sessions,
	coupons *application.CouponService,
	flow *application.CheckoutFlow,
	committer *application.OrderCommitter,
	catalog domain.Catalog,
	auth *Authenticator,
	sessionTTL time.Duration,
) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:   sessions,
		coupons:    coupons,
		flow:       flow,
		committer:  committer,
		catalog:    catalog,
		auth:       auth,
		sessionTTL: sessionTTL,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.handleGetCart)
	mux.HandleFunc("POST /api/cart/items", h.handleAddItem)
	mux.HandleFunc("PATCH /api/cart/items/{productID}", h.handleUpdateItem)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.handleRemoveItem)
	mux.HandleFunc("DELETE /api/cart", h.handleClearCart)
	mux.HandleFunc("POST /api/cart/coupon", h.handleApplyCoupon)
	mux.HandleFunc("DELETE /api/cart/coupon", h.handleRemoveCoupon)
	mux.HandleFunc("GET /api/checkout/payment-methods", h.handlePaymentMethods)
	mux.HandleFunc("GET /api/checkout/steps/{step}", h.handleEnterStep)
	mux.HandleFunc("POST /api/checkout/shipping", h.handleSubmitShipping)
	mux.HandleFunc("POST /api/checkout/payment", h.handleSelectPayment)
	mux.HandleFunc("POST /api/checkout/orders", h.handlePlaceOrder)
}

// open 提取追踪上下文、会话ID与用户ID，并载入会话
func (h *CheckoutHandler) open(w http.ResponseWriter, r *http.Request) (context.Context, *application.Session, bool) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx = logger.WithTraceID(ctx)

	userID, err := h.auth.UserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, &domain.Error{Kind: "Unauthorized", Message: err.Error()})
		return ctx, nil, false
	}
	return ctx, h.sessions.Open(ctx, h.sessionID(w, r), userID), true
}

func (h *CheckoutHandler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if sid := r.Header.Get(sessionHeader); sid != "" {
		return sid
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(sessionHeader, sid)
	return sid
}

func (h *CheckoutHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req application.AddItemRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		product *domain.ProductRef
		err     error
	)
	switch {
	case req.ProductID != "":
		product, err = h.catalog.FindByID(ctx, req.ProductID)
	case req.Slug != "":
		product, err = h.catalog.FindBySlug(ctx, req.Slug)
	default:
		writeError(w, http.StatusBadRequest, &domain.Error{
			Kind:    domain.KindInvalidCheckoutInput,
			Message: "productId or slug is required",
			Fields:  map[string]string{"productId": "is required"},
		})
		return
	}
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	sess.AddItem(ctx, *product, req.Quantity)
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req application.UpdateQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	sess.UpdateQuantity(ctx, r.PathValue("productID"), req.Quantity)
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	sess.RemoveItem(ctx, r.PathValue("productID"))
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	sess.Clear(ctx)
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req application.ApplyCouponRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.coupons.ApplyCoupon(ctx, sess, req.Code); err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handleRemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	h.coupons.RemoveCoupon(ctx, sess)
	writeJSON(w, http.StatusOK, application.NewCartView(sess))
}

func (h *CheckoutHandler) handlePaymentMethods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.flow.PaymentMethods())
}

func (h *CheckoutHandler) handleEnterStep(w http.ResponseWriter, r *http.Request) {
	step, valid := domain.ParseStep(r.PathValue("step"))
	if !valid {
		writeError(w, http.StatusNotFound, &domain.Error{Kind: "UnknownStep", Message: "unknown checkout step"})
		return
	}
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	res := h.flow.Enter(ctx, sess, step)
	writeJSON(w, http.StatusOK, application.StepView{Resolution: res, Totals: sess.Totals()})
}

func (h *CheckoutHandler) handleSubmitShipping(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var addr domain.Address
	if !decode(w, r, &addr) {
		return
	}
	res, err := h.flow.SubmitShipping(ctx, sess, addr)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, application.StepView{Resolution: res, Totals: sess.Totals()})
}

func (h *CheckoutHandler) handleSelectPayment(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req application.SelectPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.flow.SelectPayment(ctx, sess, req.Method)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, application.StepView{Resolution: res, Totals: sess.Totals()})
}

func (h *CheckoutHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, sess, ok := h.open(w, r)
	if !ok {
		return
	}
	result, err := h.committer.PlaceOrder(ctx, sess)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HealthHandler 存活检查
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, &domain.Error{Kind: "BadRequest", Message: "invalid request body"})
		return false
	}
	return true
}

type errorBody struct {
	Kind    domain.ErrorKind  `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor 根据错误类型返回不同的 HTTP 状态码
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindCouponNotFound, domain.KindProductNotFound:
		return http.StatusNotFound
	case domain.KindCouponInactive, domain.KindCouponLimitReached, domain.KindCouponNotApplicable:
		return http.StatusForbidden // 请求有效，但券不可用
	case domain.KindInvalidCheckoutInput:
		return http.StatusUnprocessableEntity
	case domain.KindIncompleteCheckout:
		return http.StatusConflict
	case domain.KindOrderPlacementFailed, domain.KindDependencyUnavailable:
		return http.StatusServiceUnavailable // 买家可直接重试
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		logger.Ctx(ctx).Error().Err(err).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, &domain.Error{Kind: "Internal", Message: "internal error"})
		return
	}
	if derr.Cause != nil {
		logger.Ctx(ctx).Warn().Err(derr.Cause).Str("kind", string(derr.Kind)).Msg(derr.Message)
	}
	status := statusFor(derr.Kind)
	if derr.Kind == domain.KindIncompleteCheckout && derr.Fields["step"] == string(domain.StepLogin) {
		status = http.StatusUnauthorized
	}
	writeError(w, status, derr)
}

// writeError 只输出类别、消息与字段，Cause 仅记录在服务端日志
func writeError(w http.ResponseWriter, status int, err *domain.Error) {
	writeJSON(w, status, errorBody{Kind: err.Kind, Message: err.Message, Fields: err.Fields})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
