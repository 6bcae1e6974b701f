package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func product(id, price string) ProductRef {
	return ProductRef{ID: id, Name: "Item " + id, Price: decimal.RequireFromString(price)}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, FormatMoney(got), msgAndArgs...)
}
