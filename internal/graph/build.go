// Package graph wires the dependency edges between expression contexts: it
// lifts {{...}} snippets out of query expressions into embedded path nodes,
// resolves %variable references by scope lookup, and proves the resulting
// graph is a DAG before the resolver runs.
package graph

import (
	"context"
	"regexp"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/fhirpath"
	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/idgen"
	"github.com/vk/formscope/internal/scope"
)

// embeddedPattern matches one {{...}} snippet inside a query expression.
var embeddedPattern = regexp.MustCompile(`\{\{(.+?)\}\}`)

// Response-relative variables resolve against the response tree at
// evaluation time rather than against a named context, so they never
// produce a dependency edge.
var responseVars = map[string]struct{}{
	"resource": {},
	"context":  {},
}

var (
	resourceVarPattern = regexp.MustCompile(`%resource\b`)
	contextVarPattern  = regexp.MustCompile(`%context\b`)
)

// Builder discovers dependency edges for every expression in a scope tree.
// The evaluator is needed for the response-dependent lookup synthesis only.
type Builder struct {
	Evaluator scope.PathEvaluator
	IDs       idgen.Provider
}

// Build walks every expression context in creation order and wires its
// dependency edges. Unknown variable references are reported and left
// unwired; resolution will then fail on them.
func (b *Builder) Build(ctx context.Context, root *scope.Scope) {
	for _, node := range root.ExpressionsByID() {
		switch node.Language {
		case scope.LanguageQuery:
			b.wireQuery(ctx, node)
		case scope.LanguagePath:
			b.wirePath(ctx, node)
		}
	}
}

// wireQuery lifts each {{...}} snippet into a fresh embedded path node in
// the same scope and records an edge from the query to it. The embedded
// node's own variable references are wired immediately.
func (b *Builder) wireQuery(ctx context.Context, node *scope.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, m := range embeddedPattern.FindAllStringSubmatch(node.Text, -1) {
		inner := m[1]
		emb := scope.NewExpression(b.IDs.NextID(), scope.KindEmbedded, "", scope.LanguagePath, inner, node.Item, node.ResponseItem)
		node.Scope().Append(emb)
		node.AddDependency(emb)
		logger.Debug("Lifted embedded expression out of query.", "query", node.Text, "embedded", inner)
		b.wirePath(ctx, emb)
	}
}

// wirePath collects the %variable references of a path expression and adds
// one edge per reference that resolves by scope lookup.
func (b *Builder) wirePath(ctx context.Context, node *scope.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, token := range fhirpath.SplitTokens(node.Text) {
		name, ok := fhirpath.VariableName(token)
		if !ok {
			continue
		}
		if _, ok := responseVars[name]; ok {
			node.ResponseDependant = true
			continue
		}
		dep := node.Scope().Lookup(name)
		if dep == nil {
			logger.Warn("Unknown variable reference in expression.",
				"variable", name, "expression", node.Text)
			continue
		}
		node.AddDependency(dep)
	}
	if node.ResponseDependant {
		b.wireResponseLookup(ctx, node)
	}
}

// wireResponseLookup handles response-dependent expressions: a rewritten
// copy of the text (%resource -> %questionnaire, %context -> %qitem) is
// evaluated immediately to locate the form item the expression targets, and
// the node then depends on that item scope's initial expression when it has
// one.
func (b *Builder) wireResponseLookup(ctx context.Context, node *scope.Context) {
	logger := ctxlog.FromContext(ctx)
	rewritten := resourceVarPattern.ReplaceAllString(node.Text, "%questionnaire")
	rewritten = contextVarPattern.ReplaceAllString(rewritten, "%qitem")

	res, err := b.Evaluator.Evaluate(ctx, rewritten, node.Scope())
	if err != nil {
		logger.Warn("Response-dependent lookup failed.", "expression", rewritten, "error", err)
		return
	}
	if res == nil || len(res.Values) != 1 {
		return
	}
	item, ok := form.AsItem(res.Values[0])
	if !ok {
		return
	}
	itemScope := node.Scope().Root().FindItemScope(item)
	if itemScope == nil {
		return
	}
	if init := itemScope.ByKind(scope.KindInitialExpression); init != nil {
		logger.Debug("Wiring response-dependent expression to initial expression.",
			"expression", node.Text, "target", item.LinkID)
		node.AddDependency(init)
	}
}
