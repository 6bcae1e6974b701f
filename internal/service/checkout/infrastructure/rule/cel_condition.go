// internal/service/checkout/infrastructure/rule/cel_condition.go
package rule

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"glimmer/internal/service/checkout/domain"
)

// CELConditionEvaluator 是 domain.ConditionEvaluator 的 CEL 实现。
// 可用变量：subtotal(double) item_count(int) user_id(string) product_ids(list(string))
type CELConditionEvaluator struct {
	env      *cel.Env
	programs sync.Map // expr -> cel.Program
}

func NewCELConditionEvaluator() (*CELConditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("product_ids", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &CELConditionEvaluator{env: env}, nil
}

// Compile 校验表达式，后台录入券时使用
func (e *CELConditionEvaluator) Compile(expr string) (cel.Program, error) {
	if p, ok := e.programs.Load(expr); ok {
		return p.(cel.Program), nil
	}
	ast, iss := e.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expr, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for %q: %w", expr, err)
	}
	e.programs.Store(expr, prg)
	return prg, nil
}

func (e *CELConditionEvaluator) Evaluate(ctx context.Context, expr string, in domain.ConditionInput) (bool, error) {
	prg, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	productIDs := in.ProductIDs
	if productIDs == nil {
		productIDs = []string{}
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"subtotal":    in.Subtotal.InexactFloat64(),
		"item_count":  int64(in.ItemCount),
		"user_id":     in.UserID,
		"product_ids": productIDs,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T, want bool", expr, out.Value())
	}
	return b, nil
}
