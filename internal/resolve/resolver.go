// Package resolve runs the resolution pass: parse the form into a scope
// tree, wire the dependency graph, prove it acyclic, then iterate a bounded
// fixpoint that evaluates ready path expressions, batch-fetches ready query
// expressions, and materializes fan-out by cloning subtrees.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/graph"
	"github.com/vk/formscope/internal/idgen"
	"github.com/vk/formscope/internal/loader"
	"github.com/vk/formscope/internal/parse"
	"github.com/vk/formscope/internal/scope"
)

// Sentinel errors for the fatal pass outcomes.
var (
	ErrCycle      = errors.New("dependency cycle")
	ErrNoProgress = errors.New("resolution made no progress")
	ErrUnresolved = errors.New("unresolved expressions remain")
)

// maxRounds bounds the fixpoint. Every completed round either resolves at
// least one node, restarts after a fan-out, or fails, so the bound is a
// ceiling rather than a tuning knob.
const maxRounds = 5

// Options collects the inputs of one resolution pass.
type Options struct {
	Questionnaire *form.Questionnaire
	Response      *form.QuestionnaireResponse
	Launch        []scope.Launch
	Loader        loader.Source
	Evaluator     scope.PathEvaluator
	Mode          scope.Mode

	// IDs may be nil; a fresh sequence is used then.
	IDs idgen.Provider
}

// Resolve is the entry point of a pass. On success the returned scope tree
// has every permitted expression resolved; any fatal condition returns a nil
// scope and an error.
func Resolve(ctx context.Context, opts Options) (*scope.Scope, error) {
	if opts.Questionnaire == nil {
		return nil, errors.New("resolve: questionnaire is required")
	}
	if opts.Evaluator == nil {
		return nil, errors.New("resolve: path evaluator is required")
	}
	if opts.Loader == nil {
		return nil, errors.New("resolve: resource loader is required")
	}
	ids := opts.IDs
	if ids == nil {
		ids = idgen.NewSequence()
	}

	root := parse.Build(ctx, opts.Questionnaire, opts.Response, opts.Launch, opts.Mode, ids)

	builder := &graph.Builder{Evaluator: opts.Evaluator, IDs: ids}
	builder.Build(ctx, root)

	if err := graph.DetectCycles(root); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycle, err)
	}

	r := &resolver{
		root:  root,
		mode:  opts.Mode,
		eval:  opts.Evaluator,
		ids:   ids,
		cache: loader.NewCache(opts.Loader),
	}
	if err := r.run(ctx); err != nil {
		return nil, err
	}
	return root, nil
}

type resolver struct {
	root  *scope.Scope
	mode  scope.Mode
	eval  scope.PathEvaluator
	ids   idgen.Provider
	cache *loader.Cache
}

// run drives the bounded fixpoint.
func (r *resolver) run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("Starting resolution round.", "round", round, "mode", r.mode.String())

		pathProgress, exploded, err := r.resolvePaths(ctx)
		if err != nil {
			return err
		}
		if exploded {
			// Fan-out rewrote the tree; the round restarts so candidates are
			// recomputed against the clones.
			continue
		}

		queryProgress, exploded, err := r.resolveQueries(ctx)
		if err != nil {
			return err
		}
		if exploded {
			continue
		}

		if len(r.pending()) == 0 {
			logger.Debug("Resolution converged.", "rounds", round)
			return nil
		}
		if !pathProgress && !queryProgress {
			return fmt.Errorf("%w in round %d", ErrNoProgress, round)
		}
	}

	if pending := r.pending(); len(pending) > 0 {
		texts := make([]string, 0, len(pending))
		for _, c := range pending {
			texts = append(texts, c.Text)
		}
		return fmt.Errorf("%w after %d rounds: %s", ErrUnresolved, maxRounds, strings.Join(texts, "; "))
	}
	return nil
}

// pending returns the unresolved expression nodes whose kind participates in
// this pass. Success is their absence.
func (r *resolver) pending() []*scope.Context {
	var out []*scope.Context
	for _, c := range r.root.ExpressionsByID() {
		if !c.Resolved() && c.Kind.PermittedIn(r.mode) {
			out = append(out, c)
		}
	}
	return out
}

// candidates filters pending nodes down to those whose transitive
// dependencies contain no kind forbidden in the current mode.
func (r *resolver) candidates() []*scope.Context {
	var out []*scope.Context
	for _, c := range r.pending() {
		if !r.dependsOnForbidden(c, make(map[int]bool)) {
			out = append(out, c)
		}
	}
	return out
}

func (r *resolver) dependsOnForbidden(c *scope.Context, seen map[int]bool) bool {
	if seen[c.ID()] {
		return false
	}
	seen[c.ID()] = true
	for _, dep := range c.Deps {
		if dep.IsExpression() && !dep.Kind.PermittedIn(r.mode) {
			return true
		}
		if r.dependsOnForbidden(dep, seen) {
			return true
		}
	}
	return false
}

// resolvePaths evaluates every ready path expression once, in topological
// order so a chain of dependent expressions settles within one sweep.
// Returns whether any node resolved and whether a fan-out rewrote the tree
// (which aborts the sweep so the round can restart).
func (r *resolver) resolvePaths(ctx context.Context) (progress, exploded bool, err error) {
	logger := ctxlog.FromContext(ctx)
	var paths []*scope.Context
	for _, node := range r.candidates() {
		if node.Language == scope.LanguagePath {
			paths = append(paths, node)
		}
	}
	ordered, err := graph.TopoOrder(paths)
	if err != nil {
		return false, false, err
	}

	for _, node := range ordered {
		if !node.Ready() {
			continue
		}

		res, evalErr := r.eval.Evaluate(ctx, node.Text, node.Scope())
		if evalErr != nil {
			if ctx.Err() != nil {
				return progress, false, ctx.Err()
			}
			logger.Warn("Path evaluation failed.", "expression", node.Text, "error", evalErr)
			continue
		}
		if res == nil {
			// Not evaluable yet (for example an unbound variable); stays
			// unresolved and decays to a pass failure if nothing changes.
			continue
		}

		vals := res.Values
		if res.Source != cty.NilVal {
			node.SourceResource = res.Source
		}

		switch {
		case len(vals) == 0:
			node.SetValue(nil)
			progress = true

		case node.Kind == scope.KindEmbedded:
			node.SetValue(vals)
			if len(vals) == 1 {
				r.spliceEmbedded(ctx, node, vals[0])
			} else {
				logger.Warn("Embedded expression produced multiple results, query text left untouched.",
					"expression", node.Text, "results", len(vals))
			}
			progress = true

		case len(vals) == 1:
			if ri, ok := form.AsResponseItem(vals[0]); ok {
				node.SetValue(ri.AnswerValues())
			} else {
				node.SetValue(vals)
			}
			progress = true

		case countNonPrimitive(vals) > 1:
			if r.explode(ctx, node.Scope(), []*scope.Context{node}, vals) {
				return progress, true, nil
			}
			// Fan-out was refused (root scope); the node stays unresolved.

		default:
			node.SetValue(vals)
			progress = true
		}
	}
	return progress, false, nil
}

// spliceEmbedded rewrites every query-language dependant of an embedded
// node, replacing one literal {{...}} occurrence with the rendering of the
// resolved element.
func (r *resolver) spliceEmbedded(ctx context.Context, node *scope.Context, v cty.Value) {
	logger := ctxlog.FromContext(ctx)
	literal := "{{" + node.Text + "}}"
	rendered := renderValue(v)
	for _, dep := range sortedByID(node.Dependants) {
		if dep.Language != scope.LanguageQuery {
			continue
		}
		dep.Text = strings.Replace(dep.Text, literal, rendered, 1)
		logger.Debug("Spliced embedded result into query.", "query", dep.Text, "value", rendered)
	}
}

// resolveQueries batch-fetches every ready query expression's url through
// the per-pass cache and assigns the results, fanning out when a
// multi-resource url is shared by several expressions.
func (r *resolver) resolveQueries(ctx context.Context) (progress, exploded bool, err error) {
	groups := make(map[string][]*scope.Context)
	for _, node := range r.candidates() {
		if node.Language != scope.LanguageQuery || !node.Ready() {
			continue
		}
		groups[node.Text] = append(groups[node.Text], node)
	}
	if len(groups) == 0 {
		return false, false, nil
	}

	urls := make([]string, 0, len(groups))
	for url := range groups {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	results, err := r.cache.Fetch(ctx, urls)
	if err != nil {
		return false, false, err
	}

	for _, url := range urls {
		group := groups[url]
		resources := results[url]
		if len(resources) > 1 && len(group) > 1 {
			if r.explode(ctx, group[0].Scope(), group, resources) {
				return progress, true, nil
			}
		}
		for _, node := range group {
			node.SetValue(resources)
			progress = true
		}
	}
	return progress, false, nil
}

func sortedByID(m map[int]*scope.Context) []*scope.Context {
	out := make([]*scope.Context, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
