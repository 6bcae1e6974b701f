// internal/service/checkout/domain/checkout.go
package domain

// Step 结账流程中的位置。cart 与 login 只作为重定向目标出现。
type Step string

const (
	StepCart      Step = "cart"
	StepLogin     Step = "login"
	StepShipping  Step = "shipping"
	StepPayment   Step = "payment"
	StepSummary   Step = "summary"
	StepCommitted Step = "committed"
)

var stepRank = map[Step]int{
	StepShipping:  1,
	StepPayment:   2,
	StepSummary:   3,
	StepCommitted: 4,
}

// ParseStep 只接受 shipping/payment/summary 三个可进入的步骤
func ParseStep(s string) (Step, bool) {
	switch st := Step(s); st {
	case StepShipping, StepPayment, StepSummary:
		return st, true
	}
	return "", false
}

// CheckoutState 结账进度，只增加字段。地址整体设置。
type CheckoutState struct {
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	PaymentMethod   string   `json:"paymentMethod,omitempty"`
}

func (s CheckoutState) IsEmpty() bool {
	return s.ShippingAddress == nil && s.PaymentMethod == ""
}

// CheckoutFacts 步骤守卫需要的全部事实
type CheckoutFacts struct {
	CartEmpty     bool
	Authenticated bool
	State         CheckoutState
}

// Resolution 进入某一步骤的结果：Step 是实际应展示的步骤，
// 被重定向到 login 时 ReturnTo 为原请求步骤。
type Resolution struct {
	Requested Step `json:"requested"`
	Step      Step `json:"step"`
	ReturnTo  Step `json:"returnTo,omitempty"`
}

func (r Resolution) Redirected() bool { return r.Step != r.Requested }

// ResolveStep 每个步骤入口独立校验前置数据，不满足时回到最早未满足的步骤
func ResolveStep(requested Step, f CheckoutFacts) Resolution {
	res := Resolution{Requested: requested, Step: requested}
	rank := stepRank[requested]
	switch {
	case f.CartEmpty:
		res.Step = StepCart
	case !f.Authenticated:
		res.Step = StepLogin
		res.ReturnTo = requested
	case rank >= stepRank[StepPayment] && f.State.ShippingAddress == nil:
		res.Step = StepShipping
	case rank >= stepRank[StepSummary] && f.State.PaymentMethod == "":
		res.Step = StepPayment
	}
	return res
}

// CurrentStep 从已有数据推导位置，步骤本身不持久化
func CurrentStep(s CheckoutState) Step {
	switch {
	case s.ShippingAddress == nil:
		return StepShipping
	case s.PaymentMethod == "":
		return StepPayment
	default:
		return StepSummary
	}
}

// PaymentMethod 展示给买家的支付方式，Enabled=false 的只展示不可选
type PaymentMethod struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// PaymentMethods 可用支付方式目录
type PaymentMethods []PaymentMethod

// Enabled 判断 code 是否对应一个已启用的支付方式
func (pm PaymentMethods) Enabled(code string) bool {
	for _, m := range pm {
		if m.Code == code {
			return m.Enabled
		}
	}
	return false
}
