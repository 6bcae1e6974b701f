// internal/service/checkout/application/checkout_flow.go
package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/service/checkout/domain"
)

// CheckoutFlow 结账步骤：shipping -> payment -> summary
type CheckoutFlow struct {
	methods domain.PaymentMethods
	tracer  trace.Tracer
}

func NewCheckoutFlow(methods domain.PaymentMethods, tracer trace.Tracer) *CheckoutFlow {
	return &CheckoutFlow{methods: methods, tracer: tracer}
}

// PaymentMethods 返回全部支付方式，包括展示但不可选的
func (f *CheckoutFlow) PaymentMethods() domain.PaymentMethods {
	out := make(domain.PaymentMethods, len(f.methods))
	copy(out, f.methods)
	return out
}

// Enter 进入某一步骤，前置数据缺失时给出应跳转的步骤
func (f *CheckoutFlow) Enter(ctx context.Context, sess *Session, step domain.Step) domain.Resolution {
	_, span := f.tracer.Start(ctx, "checkout.Enter")
	defer span.End()

	res := domain.ResolveStep(step, sess.Facts())
	span.SetAttributes(attribute.String("checkout.requested", string(step)), attribute.String("checkout.step", string(res.Step)))
	return res
}

// SubmitShipping 校验地址并整体写入，成功后返回 payment 步骤的解析结果
func (f *CheckoutFlow) SubmitShipping(ctx context.Context, sess *Session, addr domain.Address) (domain.Resolution, error) {
	ctx, span := f.tracer.Start(ctx, "checkout.SubmitShipping")
	defer span.End()

	if res := domain.ResolveStep(domain.StepShipping, sess.Facts()); res.Redirected() {
		return res, incomplete(res)
	}
	addr = addr.Normalize()
	if err := addr.Validate(); err != nil {
		span.RecordError(err)
		return domain.ResolveStep(domain.StepShipping, sess.Facts()), err
	}

	sess.setShipping(ctx, addr)
	logger.Ctx(ctx).Info().Str("session_id", sess.ID()).Msg("shipping address saved")
	return domain.ResolveStep(domain.StepPayment, sess.Facts()), nil
}

// SelectPayment 只接受已启用的支付方式
func (f *CheckoutFlow) SelectPayment(ctx context.Context, sess *Session, method string) (domain.Resolution, error) {
	ctx, span := f.tracer.Start(ctx, "checkout.SelectPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.method", method))

	if res := domain.ResolveStep(domain.StepPayment, sess.Facts()); res.Redirected() {
		return res, incomplete(res)
	}
	if !f.methods.Enabled(method) {
		err := &domain.Error{
			Kind:    domain.KindInvalidCheckoutInput,
			Message: "payment method is not available",
			Fields:  map[string]string{"paymentMethod": "is not available"},
		}
		span.RecordError(err)
		return domain.ResolveStep(domain.StepPayment, sess.Facts()), err
	}

	sess.setPayment(ctx, method)
	logger.Ctx(ctx).Info().Str("session_id", sess.ID()).Str("method", method).Msg("payment method selected")
	return domain.ResolveStep(domain.StepSummary, sess.Facts()), nil
}

func incomplete(res domain.Resolution) error {
	fields := map[string]string{"step": string(res.Step)}
	if res.ReturnTo != "" {
		fields["returnTo"] = string(res.ReturnTo)
	}
	return &domain.Error{Kind: domain.KindIncompleteCheckout, Message: "earlier checkout step is incomplete", Fields: fields}
}
