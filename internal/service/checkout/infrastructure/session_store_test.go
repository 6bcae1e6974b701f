package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glimmer/internal/pkg/redis"
	"glimmer/internal/service/checkout/domain"
)

func sampleRecords() domain.SessionRecords {
	addr := domain.Address{FullName: "Ada", Email: "ada@example.com", Phone: "5551234567", Line1: "12 Gem St", City: "London", PostalCode: "N19GU"}
	return domain.SessionRecords{
		Cart: domain.CartRecord{
			Items: []domain.LineItem{{
				Product:  domain.ProductRef{ID: "p1", Name: "Ring", Price: decimal.RequireFromString("199.99"), Images: []string{"ring.jpg"}},
				Quantity: 2,
			}},
			Coupon: &domain.AppliedCoupon{ID: 7, Code: "SAVE10"},
		},
		Checkout: domain.CheckoutState{ShippingAddress: &addr, PaymentMethod: "cod"},
	}
}

func assertRecords(t *testing.T, want, got domain.SessionRecords) {
	t.Helper()
	require.Len(t, got.Cart.Items, len(want.Cart.Items))
	for i := range want.Cart.Items {
		assert.Equal(t, want.Cart.Items[i].Product.ID, got.Cart.Items[i].Product.ID)
		assert.Equal(t, want.Cart.Items[i].Quantity, got.Cart.Items[i].Quantity)
		assert.True(t, want.Cart.Items[i].Product.Price.Equal(got.Cart.Items[i].Product.Price))
	}
	assert.Equal(t, want.Cart.Coupon, got.Cart.Coupon)
	assert.Equal(t, want.Checkout, got.Checkout)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	store := NewRedisSessionStore(client, time.Hour)
	ctx := context.Background()

	empty, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, empty.Cart.Items)
	assert.True(t, empty.Checkout.IsEmpty())

	rec := sampleRecords()
	require.NoError(t, store.Save(ctx, "sid", rec))
	assert.True(t, mr.Exists("checkout:{sid}:cart"))
	assert.True(t, mr.Exists("checkout:{sid}:progress"))
	assert.Equal(t, time.Hour, mr.TTL("checkout:{sid}:cart"))

	got, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assertRecords(t, rec, got)

	require.NoError(t, store.Delete(ctx, "sid"))
	assert.False(t, mr.Exists("checkout:{sid}:cart"))
	assert.False(t, mr.Exists("checkout:{sid}:progress"))
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisSessionStore(redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid", sampleRecords()))
	mr.FastForward(2 * time.Minute)

	got, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got.Cart.Items)
}

func TestRedisSessionStore_CorruptRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisSessionStore(redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), time.Minute)
	require.NoError(t, mr.Set("checkout:{sid}:cart", "{not json"))

	_, err := store.Load(context.Background(), "sid")
	assert.Error(t, err)
}

func TestRedisSessionStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisSessionStore(redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), time.Minute)
	mr.Close()

	assert.Error(t, store.Save(context.Background(), "sid", sampleRecords()))
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	rec := sampleRecords()
	require.NoError(t, store.Save(ctx, "sid", rec))
	got, err := store.Load(ctx, "sid")
	require.NoError(t, err)
	assertRecords(t, rec, got)

	require.NoError(t, store.Delete(ctx, "sid"))
	got, err = store.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got.Cart.Items)
}
