package infrastructure

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"glimmer/internal/service/checkout/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var couponColumns = []string{
	"id", "code", "discount_percentage", "start_date", "end_date",
	"applicable_product_ids", "usage_limit", "times_used", "condition_expr",
}

func TestGormCouponRepository_FindByCode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormCouponRepository(db)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `coupons` WHERE code = ?")).
		WillReturnRows(sqlmock.NewRows(couponColumns).
			AddRow(7, "RING20", 20, start, start.AddDate(0, 1, 0), "p1, p3", 100, 4, "subtotal > 100.0"))

	c, err := repo.FindByCode(context.Background(), " ring20 ")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, "RING20", c.Code)
	assert.Equal(t, 20, c.DiscountPercentage)
	assert.Equal(t, []string{"p1", "p3"}, c.ApplicableProductIDs)
	assert.Equal(t, 100, c.UsageLimit)
	assert.Equal(t, 4, c.TimesUsed)
	assert.Equal(t, "subtotal > 100.0", c.Condition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCouponRepository_FindByCodeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormCouponRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `coupons` WHERE code = ?")).
		WillReturnRows(sqlmock.NewRows(couponColumns))

	_, err := repo.FindByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestGormCouponRepository_FindByCodeDriverError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormCouponRepository(db)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `coupons`")).WillReturnError(boom)

	_, err := repo.FindByCode(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	_, typed := domain.KindOf(err)
	assert.False(t, typed)
}

func TestGormCouponRepository_IncrementUsage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormCouponRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `coupons` SET `times_used`=times_used + ? WHERE id = ?")).
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.IncrementUsage(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCouponRepository_IncrementUsageMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGormCouponRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `coupons` SET `times_used`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.ErrorIs(t, repo.IncrementUsage(context.Background(), 99), domain.ErrCouponNotFound)
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		UserID:         "u1",
		OrderDate:      time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		Status:         domain.OrderStatusPending,
		SubTotal:       decimal.RequireFromString("250"),
		CouponCode:     "SAVE10",
		CouponDiscount: decimal.RequireFromString("25"),
		TotalAmount:    decimal.RequireFromString("225"),
		ShippingAddress: domain.Address{
			FullName: "Ada", Email: "ada@example.com", Phone: "5551234567",
			Line1: "12 Gem Street", City: "London", PostalCode: "N19GU",
		},
		PaymentMethod: "cod",
		Items: []domain.OrderItem{
			{ProductID: "p1", ProductName: "Ring", Quantity: 2, ItemPrice: decimal.RequireFromString("100")},
			{ProductID: "p2", ProductName: "Chain", Quantity: 1, ItemPrice: decimal.RequireFromString("50")},
		},
	}
}

func TestGormOrderLedger_Create(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewGormOrderLedger(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `order_items`")).WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	order := sampleOrder()
	id, err := ledger.Create(context.Background(), order)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Empty(t, order.ID, "caller's order is not mutated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderLedger_CreateFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewGormOrderLedger(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `orders`")).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	id, err := ledger.Create(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapper_CouponRoundTrip(t *testing.T) {
	c := &domain.Coupon{ID: 3, Code: "save5", DiscountPercentage: 5, ApplicableProductIDs: []string{"a", "b"}}
	m := FromDomainCoupon(c)
	assert.Equal(t, "SAVE5", m.Code)
	assert.Equal(t, "a,b", m.ApplicableProductIDs)

	back := ToDomainCoupon(m)
	assert.Equal(t, []string{"a", "b"}, back.ApplicableProductIDs)
	assert.Nil(t, ToDomainCoupon(&CouponModel{}).ApplicableProductIDs)
}

func TestMapper_Order(t *testing.T) {
	o := sampleOrder()
	o.ID = "abc"
	m := FromDomainOrder(o)
	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, "London", m.ShippingAddress.City)
	require.Len(t, m.Items, 2)
	assert.Equal(t, "abc", m.Items[0].OrderID)
	assert.True(t, m.Items[1].ItemPrice.Equal(decimal.NewFromInt(50)))
}
