// Package fhirpath implements the subset of the path language the resolver
// collaborates with: %variable roots bound through the scope tree, attribute
// traversal over resources and item references, and the handful of functions
// form expressions lean on (where, first, exists, count, children). The full
// language lives behind the same contract in a dedicated engine; this one
// keeps the repository runnable on its own.
package fhirpath

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/scope"
)

// Engine evaluates path expressions against a scope environment. The
// questionnaire and response give the %questionnaire / %qitem / %resource /
// %context roots something to stand on.
type Engine struct {
	Questionnaire *form.Questionnaire
	Response      *form.QuestionnaireResponse
}

// New builds an engine for one form/response pair. Either argument may be
// nil; the corresponding roots then evaluate to nothing.
func New(q *form.Questionnaire, qr *form.QuestionnaireResponse) *Engine {
	return &Engine{Questionnaire: q, Response: qr}
}

// Evaluate resolves a path expression. A nil result means the expression is
// not evaluable (unbound variable, unsupported construct); a non-nil result
// with no values is a successful empty evaluation.
func (e *Engine) Evaluate(ctx context.Context, expr string, env *scope.Scope) (*scope.PathResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := SplitTokens(strings.TrimSpace(expr))
	if len(tokens) == 0 || tokens[0] == "" {
		return &scope.PathResult{}, nil
	}

	vals, source, ok := e.root(tokens[0], env)
	if !ok {
		return nil, nil
	}

	for _, token := range tokens[1:] {
		stepped, ok := step(vals, token)
		if !ok {
			return nil, nil
		}
		vals = stepped
	}
	return &scope.PathResult{Values: vals, Source: source}, nil
}

// root resolves the first token of an expression.
func (e *Engine) root(token string, env *scope.Scope) (vals []cty.Value, source cty.Value, ok bool) {
	if name, isVar := VariableName(token); isVar {
		switch name {
		case "questionnaire":
			if e.Questionnaire == nil {
				return nil, cty.NilVal, false
			}
			return []cty.Value{form.ItemVal(&form.Item{Item: e.Questionnaire.Item})}, cty.NilVal, true
		case "qitem":
			for cur := env; cur != nil; cur = cur.Parent() {
				if cur.Item != nil {
					return []cty.Value{form.ItemVal(cur.Item)}, cty.NilVal, true
				}
			}
			return nil, cty.NilVal, false
		case "resource":
			if e.Response == nil {
				return nil, cty.NilVal, false
			}
			return []cty.Value{form.ResponseItemVal(&form.ResponseItem{Item: e.Response.Item})}, cty.NilVal, true
		case "context":
			for cur := env; cur != nil; cur = cur.Parent() {
				if cur.ResponseItem != nil {
					return []cty.Value{form.ResponseItemVal(cur.ResponseItem)}, cty.NilVal, true
				}
			}
			return nil, cty.NilVal, false
		}

		bound := env.Lookup(name)
		if bound == nil {
			return nil, cty.NilVal, false
		}
		bvals, resolved := bound.Value()
		if !resolved {
			return nil, cty.NilVal, false
		}
		if len(bvals) == 1 && bvals[0] != cty.NilVal && !bvals[0].IsNull() && bvals[0].Type().IsObjectType() {
			source = bvals[0]
		}
		return append([]cty.Value(nil), bvals...), source, true
	}

	if len(token) >= 2 && token[0] == '\'' && token[len(token)-1] == '\'' {
		return []cty.Value{cty.StringVal(token[1 : len(token)-1])}, cty.NilVal, true
	}
	return nil, cty.NilVal, false
}

var functionPattern = regexp.MustCompile(`^([a-zA-Z]\w*)\((.*)\)$`)

// step applies one dot-separated part to the current value list.
func step(vals []cty.Value, token string) ([]cty.Value, bool) {
	if m := functionPattern.FindStringSubmatch(token); m != nil {
		return applyFunction(vals, m[1], m[2])
	}
	var out []cty.Value
	for _, v := range flatten(vals) {
		out = append(out, attr(v, token)...)
	}
	return out, true
}

// attr reads one attribute off a single value, flattening any collection it
// yields.
func attr(v cty.Value, name string) []cty.Value {
	if item, ok := form.AsItem(v); ok {
		switch name {
		case "item":
			out := make([]cty.Value, 0, len(item.Item))
			for _, child := range item.Item {
				out = append(out, form.ItemVal(child))
			}
			return out
		case "linkId":
			return []cty.Value{cty.StringVal(item.LinkID)}
		case "text":
			return []cty.Value{cty.StringVal(item.Text)}
		case "type":
			return []cty.Value{cty.StringVal(item.Type)}
		}
		return nil
	}
	if ri, ok := form.AsResponseItem(v); ok {
		switch name {
		case "item":
			out := make([]cty.Value, 0, len(ri.Item))
			for _, child := range ri.Item {
				out = append(out, form.ResponseItemVal(child))
			}
			return out
		case "answer":
			return ri.AnswerValues()
		case "linkId":
			return []cty.Value{cty.StringVal(ri.LinkID)}
		case "text":
			return []cty.Value{cty.StringVal(ri.Text)}
		}
		return nil
	}
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty.IsObjectType() && ty.HasAttribute(name):
		return flatten([]cty.Value{v.GetAttr(name)})
	case ty.IsMapType():
		if v.HasIndex(cty.StringVal(name)).True() {
			return flatten([]cty.Value{v.Index(cty.StringVal(name))})
		}
	}
	return nil
}

var wherePattern = regexp.MustCompile(`^(\w+)\s*=\s*'([^']*)'$`)

// applyFunction handles the supported function calls.
func applyFunction(vals []cty.Value, name, args string) ([]cty.Value, bool) {
	switch name {
	case "where":
		m := wherePattern.FindStringSubmatch(strings.TrimSpace(args))
		if m == nil {
			return nil, false
		}
		var out []cty.Value
		for _, v := range flatten(vals) {
			matched := attr(v, m[1])
			if len(matched) == 1 && matched[0].Type() == cty.String && !matched[0].IsNull() && matched[0].AsString() == m[2] {
				out = append(out, v)
			}
		}
		return out, true
	case "first":
		flat := flatten(vals)
		if len(flat) == 0 {
			return nil, true
		}
		return flat[:1], true
	case "exists":
		return []cty.Value{cty.BoolVal(len(flatten(vals)) > 0)}, true
	case "count":
		return []cty.Value{cty.NumberIntVal(int64(len(flatten(vals))))}, true
	case "children":
		var out []cty.Value
		for _, v := range flatten(vals) {
			out = append(out, attr(v, "item")...)
		}
		return out, true
	}
	return nil, false
}

// flatten expands list, set, and tuple values into their elements.
func flatten(vals []cty.Value) []cty.Value {
	var out []cty.Value
	for _, v := range vals {
		if v == cty.NilVal || v.IsNull() {
			continue
		}
		ty := v.Type()
		if ty.IsListType() || ty.IsSetType() || ty.IsTupleType() {
			it := v.ElementIterator()
			for it.Next() {
				_, el := it.Element()
				out = append(out, flatten([]cty.Value{el})...)
			}
			continue
		}
		out = append(out, v)
	}
	return out
}

// String renders the engine identity for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("fhirpath subset engine (questionnaire=%v, response=%v)",
		e.Questionnaire != nil, e.Response != nil)
}
