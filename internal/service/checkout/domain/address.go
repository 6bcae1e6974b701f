// internal/service/checkout/domain/address.go
package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Address 收货地址，整体写入 CheckoutState
type Address struct {
	FullName   string `json:"fullName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"min=10"`
	Line1      string `json:"address" validate:"min=5"`
	City       string `json:"city" validate:"min=2"`
	PostalCode string `json:"postalCode" validate:"min=4"`
	Country    string `json:"country,omitempty"`
}

var addressValidator = validator.New(validator.WithRequiredStructEnabled())

// Normalize 去掉各字段首尾空白
func (a Address) Normalize() Address {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}

var fieldNames = map[string]string{
	"FullName":   "fullName",
	"Email":      "email",
	"Phone":      "phone",
	"Line1":      "address",
	"City":       "city",
	"PostalCode": "postalCode",
}

// Validate 校验失败时返回 ErrInvalidCheckoutInput，Fields 列出每个不合法字段
func (a Address) Validate() error {
	err := addressValidator.Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(KindInvalidCheckoutInput, "invalid shipping address", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fieldNames[fe.StructField()]
		if name == "" {
			name = fe.Field()
		}
		fields[name] = describe(fe)
	}
	return &Error{Kind: KindInvalidCheckoutInput, Message: "invalid shipping address", Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
