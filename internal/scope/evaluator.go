package scope

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// PathResult carries the outcome of evaluating a path expression: an ordered
// list of base values and, when the evaluation walked into a resource, that
// source resource.
type PathResult struct {
	Values []cty.Value
	Source cty.Value
}

// PathEvaluator evaluates a path expression against a scope, which serves as
// the variable-binding environment. A nil result means the expression could
// not be evaluated (for example an unbound variable) and is distinguishable
// from a non-nil result with no values.
type PathEvaluator interface {
	Evaluate(ctx context.Context, expr string, env *Scope) (*PathResult, error)
}

// Launch names one externally supplied resource to inject at the root scope.
type Launch struct {
	Name     string
	Resource cty.Value
}
