package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"glimmer/internal/service/checkout/domain"
)

var (
	testNow                 = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	testTracer trace.Tracer = noop.NewTracerProvider().Tracer("test")
	errBoom                 = errors.New("boom")
)

func clock() time.Time { return testNow }

func product(id, price string) domain.ProductRef {
	return domain.ProductRef{ID: id, Name: "Item " + id, Price: decimal.RequireFromString(price)}
}

func address() domain.Address {
	return domain.Address{
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Phone:      "5551234567",
		Line1:      "12 Gem Street",
		City:       "London",
		PostalCode: "N1 9GU",
	}
}

type memStore struct {
	mu        sync.Mutex
	data      map[string]domain.SessionRecords
	saves     int
	lastSave  context.Context
	saveErr   error
	loadErr   error
	deleteErr error
}

func newMemStore() *memStore { return &memStore{data: map[string]domain.SessionRecords{}} }

func (m *memStore) Load(_ context.Context, sid string) (domain.SessionRecords, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.SessionRecords{}, m.loadErr
	}
	return m.data[sid], nil
}

func (m *memStore) Save(ctx context.Context, sid string, rec domain.SessionRecords) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.lastSave = ctx
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[sid] = rec
	return nil
}

func (m *memStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, sid)
	return nil
}

type fakeCoupons struct {
	byCode       map[string]*domain.Coupon
	findErr      error
	incrementErr error
	increments   map[int64]int
}

func newFakeCoupons(cs ...*domain.Coupon) *fakeCoupons {
	f := &fakeCoupons{byCode: map[string]*domain.Coupon{}, increments: map[int64]int{}}
	for _, c := range cs {
		f.byCode[c.Code] = c
	}
	return f
}

func (f *fakeCoupons) FindByCode(_ context.Context, code string) (*domain.Coupon, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.byCode[code]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) IncrementUsage(_ context.Context, id int64) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.increments[id]++
	for _, c := range f.byCode {
		if c.ID == id {
			c.TimesUsed++
		}
	}
	return nil
}

type fakeLedger struct {
	orders []*domain.Order
	err    error
}

func (l *fakeLedger) Create(_ context.Context, o *domain.Order) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.orders = append(l.orders, o)
	return "order-1", nil
}

type fakeEvents struct {
	events []domain.OrderPlaced
	err    error
}

func (e *fakeEvents) PublishOrderPlaced(_ context.Context, evt domain.OrderPlaced) error {
	e.events = append(e.events, evt)
	return e.err
}

type fakeConditions struct {
	result bool
	err    error
	seen   []domain.ConditionInput
}

func (f *fakeConditions) Evaluate(_ context.Context, _ string, in domain.ConditionInput) (bool, error) {
	f.seen = append(f.seen, in)
	return f.result, f.err
}

type fakeLock struct {
	acquired, released int
	err                error
}

func (l *fakeLock) Acquire(context.Context, int64) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

func coupon(id int64, code string, pct int, ids ...string) *domain.Coupon {
	return &domain.Coupon{
		ID:                   id,
		Code:                 code,
		DiscountPercentage:   pct,
		StartDate:            testNow.AddDate(0, 0, -7),
		EndDate:              testNow.AddDate(0, 0, 7),
		ApplicableProductIDs: ids,
	}
}
