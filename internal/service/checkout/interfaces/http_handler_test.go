package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"glimmer/internal/service/checkout/application"
	"glimmer/internal/service/checkout/domain"
	"glimmer/internal/service/checkout/infrastructure"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type stubCatalog map[string]domain.ProductRef

func (c stubCatalog) FindByID(_ context.Context, id string) (*domain.ProductRef, error) {
	p, ok := c[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (c stubCatalog) FindBySlug(_ context.Context, slug string) (*domain.ProductRef, error) {
	for _, p := range c {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

type stubCoupons map[string]*domain.Coupon

func (s stubCoupons) FindByCode(_ context.Context, code string) (*domain.Coupon, error) {
	c, ok := s[code]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (s stubCoupons) IncrementUsage(_ context.Context, id int64) error {
	for _, c := range s {
		if c.ID == id {
			c.TimesUsed++
		}
	}
	return nil
}

type stubLedger struct{ orders []*domain.Order }

func (l *stubLedger) Create(_ context.Context, o *domain.Order) (string, error) {
	l.orders = append(l.orders, o)
	return "order-42", nil
}

type testServer struct {
	mux     *http.ServeMux
	ledger  *stubLedger
	coupons stubCoupons
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	coupons := stubCoupons{
		"SAVE10": {ID: 1, Code: "SAVE10", DiscountPercentage: 10, StartDate: testNow.AddDate(0, 0, -1), EndDate: testNow.AddDate(0, 0, 1)},
		"OLD":    {ID: 2, Code: "OLD", DiscountPercentage: 10, StartDate: testNow.AddDate(0, -1, 0), EndDate: testNow.AddDate(0, 0, -1)},
	}
	catalog := stubCatalog{
		"p1": {ID: "p1", Slug: "moon-ring", Name: "Moon Ring", Price: decimal.NewFromInt(100)},
		"p2": {ID: "p2", Slug: "sun-chain", Name: "Sun Chain", Price: decimal.NewFromInt(50)},
	}
	srv := newTestServerWith(t, coupons, catalog)
	srv.coupons = coupons
	return srv
}

func newTestServerWith(t *testing.T, coupons domain.CouponRepository, catalog domain.Catalog) *testServer {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	clock := func() time.Time { return testNow }
	ledger := &stubLedger{}
	methods := domain.PaymentMethods{{Code: "cod", Label: "Cash on delivery", Enabled: true}, {Code: "card", Label: "Card"}}

	h := NewCheckoutHandler(
		application.NewSessions(infrastructure.NewMemorySessionStore(), coupons, tracer).WithClock(clock),
		application.NewCouponService(coupons, nil, tracer).WithClock(clock),
		application.NewCheckoutFlow(methods, tracer),
		application.NewOrderCommitter(coupons, ledger, tracer, application.WithCommitClock(clock)),
		catalog,
		NewAuthenticator(testSecret),
		time.Hour,
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", HealthHandler)
	return &testServer{mux: mux, ledger: ledger}
}

// downstreamErr 模拟带内部细节的驱动错误
var downstreamErr = errors.New("dial tcp mysql-primary.internal:3306: connection refused")

type downCoupons struct{}

func (downCoupons) FindByCode(context.Context, string) (*domain.Coupon, error) {
	return nil, downstreamErr
}

func (downCoupons) IncrementUsage(context.Context, int64) error { return downstreamErr }

type downCatalog struct{}

func (downCatalog) FindByID(context.Context, string) (*domain.ProductRef, error) {
	return nil, domain.Unavailable("catalog request failed", downstreamErr)
}

func (downCatalog) FindBySlug(context.Context, string) (*domain.ProductRef, error) {
	return nil, domain.Unavailable("catalog request failed", downstreamErr)
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(sessionHeader, "sid-1")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCheckoutHTTP_FullFlow(t *testing.T) {
	srv := newTestServer(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	rec := srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{Slug: "sun-chain"})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[application.CartView](t, rec)
	assert.Equal(t, "250.00", domain.FormatMoney(cart.Totals.Subtotal))
	assert.Equal(t, 3, cart.Totals.ItemCount)

	rec = srv.do(t, http.MethodPost, "/api/cart/coupon", "", application.ApplyCouponRequest{Code: "save10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart = decodeBody[application.CartView](t, rec)
	assert.Equal(t, "225.00", domain.FormatMoney(cart.Totals.Total))

	// 未登录进入结账要求登录
	rec = srv.do(t, http.MethodGet, "/api/checkout/steps/shipping", "", nil)
	step := decodeBody[application.StepView](t, rec)
	assert.Equal(t, domain.StepLogin, step.Step)
	assert.Equal(t, domain.StepShipping, step.ReturnTo)

	rec = srv.do(t, http.MethodGet, "/api/checkout/steps/summary", bearer, nil)
	step = decodeBody[application.StepView](t, rec)
	assert.Equal(t, domain.StepShipping, step.Step)

	addr := domain.Address{FullName: "Ada", Email: "ada@example.com", Phone: "5551234567", Line1: "12 Gem Street", City: "London", PostalCode: "N19GU"}
	rec = srv.do(t, http.MethodPost, "/api/checkout/shipping", bearer, addr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StepPayment, decodeBody[application.StepView](t, rec).Step)

	rec = srv.do(t, http.MethodPost, "/api/checkout/payment", bearer, application.SelectPaymentRequest{Method: "card"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/checkout/payment", bearer, application.SelectPaymentRequest{Method: "cod"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StepSummary, decodeBody[application.StepView](t, rec).Step)

	rec = srv.do(t, http.MethodPost, "/api/checkout/orders", bearer, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeBody[application.PlaceOrderResult](t, rec)
	assert.Equal(t, "order-42", result.OrderID)
	require.Len(t, srv.ledger.orders, 1)
	assert.Equal(t, "225.00", domain.FormatMoney(srv.ledger.orders[0].TotalAmount))
	assert.Equal(t, 1, srv.coupons["SAVE10"].TimesUsed)

	rec = srv.do(t, http.MethodGet, "/api/cart", bearer, nil)
	cart = decodeBody[application.CartView](t, rec)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.Coupon)
	assert.Equal(t, domain.StepShipping, cart.Step)
}

func TestCheckoutHTTP_CouponErrors(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p1"})

	rec := srv.do(t, http.MethodPost, "/api/cart/coupon", "", application.ApplyCouponRequest{Code: "OLD"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, domain.KindCouponInactive, body.Kind)

	rec = srv.do(t, http.MethodPost, "/api/cart/coupon", "", application.ApplyCouponRequest{Code: "NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/cart", "", nil)
	cart := decodeBody[application.CartView](t, rec)
	assert.Nil(t, cart.Coupon)
	assert.Equal(t, "100.00", domain.FormatMoney(cart.Totals.Total))

	rec = srv.do(t, http.MethodDelete, "/api/cart/coupon", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutHTTP_DownstreamOutage(t *testing.T) {
	catalog := stubCatalog{"p1": {ID: "p1", Name: "Moon Ring", Price: decimal.NewFromInt(100)}}
	srv := newTestServerWith(t, downCoupons{}, catalog)
	srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p1"})

	rec := srv.do(t, http.MethodPost, "/api/cart/coupon", "", application.ApplyCouponRequest{Code: "SAVE10"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, domain.KindDependencyUnavailable, body.Kind)
	assert.NotContains(t, body.Message, "mysql-primary")
	assert.NotContains(t, rec.Body.String(), "3306")

	srv = newTestServerWith(t, downCoupons{}, downCatalog{})
	rec = srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = decodeBody[errorBody](t, rec)
	assert.Equal(t, domain.KindDependencyUnavailable, body.Kind)
	assert.NotContains(t, rec.Body.String(), "mysql-primary")
}

func TestCheckoutHTTP_CartMutations(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p1"})
	srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p2"})

	rec := srv.do(t, http.MethodPatch, "/api/cart/items/p1", "", application.UpdateQuantityRequest{Quantity: 4})
	cart := decodeBody[application.CartView](t, rec)
	assert.Equal(t, 5, cart.Totals.ItemCount)

	rec = srv.do(t, http.MethodPatch, "/api/cart/items/p1", "", application.UpdateQuantityRequest{Quantity: 0})
	cart = decodeBody[application.CartView](t, rec)
	assert.Len(t, cart.Items, 1)

	rec = srv.do(t, http.MethodDelete, "/api/cart/items/missing", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[application.CartView](t, rec).Items, 1)

	rec = srv.do(t, http.MethodDelete, "/api/cart", "", nil)
	assert.Empty(t, decodeBody[application.CartView](t, rec).Items)

	rec = srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutHTTP_OrderGuards(t *testing.T) {
	srv := newTestServer(t)
	bearer := token(t, jwt.MapClaims{"user_id": "u1"})

	rec := srv.do(t, http.MethodPost, "/api/checkout/orders", bearer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, domain.KindIncompleteCheckout, body.Kind)
	assert.Equal(t, "cart", body.Fields["step"])

	srv.do(t, http.MethodPost, "/api/cart/items", "", application.AddItemRequest{ProductID: "p1"})
	rec = srv.do(t, http.MethodPost, "/api/checkout/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/checkout/shipping", bearer, domain.Address{FullName: "Ada"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Fields, "email")

	assert.Empty(t, srv.ledger.orders)
}

func TestCheckoutHTTP_AuthAndSession(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/cart", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	rec = srv.do(t, http.MethodGet, "/api/cart", wrongKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 没有会话ID时下发 cookie
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, rr.Header().Get(sessionHeader))
}

func TestCheckoutHTTP_MiscRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/checkout/payment-methods", "", nil)
	methods := decodeBody[domain.PaymentMethods](t, rec)
	assert.True(t, methods.Enabled("cod"))
	assert.False(t, methods.Enabled("card"))

	rec = srv.do(t, http.MethodGet, "/api/checkout/steps/committed", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/coupon", bytes.NewBufferString("{bad"))
	req.Header.Set(sessionHeader, "sid-x")
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
