package resolve

import (
	"context"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/scope"
)

// explode applies fan-out for the given scope and result list. Returns
// whether the tree changed (the caller then restarts the round). Fan-out at
// the root is refused.
//
// Two modes: when an extraction-context-id expression is in play the results
// are a resource collection to rehydrate into the existing sibling scopes;
// in a population pass the scope is deep-cloned once per result element.
func (r *resolver) explode(ctx context.Context, s *scope.Scope, resolved []*scope.Context, results []cty.Value) bool {
	logger := ctxlog.FromContext(ctx)
	if s.IsRoot() {
		logger.Warn("Fan-out at the root scope is not allowed.", "results", len(results))
		return false
	}

	if s.ByKind(scope.KindExtractionContextID) != nil {
		return r.rehydrate(ctx, s.Parent(), s.Item, results)
	}
	for _, child := range s.Children() {
		if child.ByKind(scope.KindExtractionContextID) != nil {
			return r.rehydrate(ctx, s, child.Item, results)
		}
	}

	if r.mode != scope.ModePopulation {
		logger.Warn("Fan-out without an extraction context id in an extraction pass, skipping.",
			"item", itemLinkID(s))
		return false
	}
	return r.explodeClones(ctx, s, resolved, results)
}

// explodeClones replaces the scope with one deep clone per result element.
// Each clone's copy of the just-resolved expressions gets the singleton
// element as its value; the clone operation already re-pointed every cloned
// dependant at the cloned dependency.
func (r *resolver) explodeClones(ctx context.Context, s *scope.Scope, resolved []*scope.Context, results []cty.Value) bool {
	logger := ctxlog.FromContext(ctx)
	clones := make([]*scope.Scope, 0, len(results))
	for _, el := range results {
		clone, mapping := s.CloneSubtree(r.ids)
		for _, orig := range resolved {
			if nc, ok := mapping[orig.ID()]; ok {
				nc.SetValue([]cty.Value{el})
			}
		}
		clones = append(clones, clone)
	}
	s.Parent().ReplaceChild(s, clones)
	logger.Debug("Exploded scope into clones.", "item", itemLinkID(s), "clones", len(clones))
	return true
}

// rehydrate attaches one resource from the collection to each sibling scope
// mirroring the same item, matched by the scope's extraction-context-id key.
// A key with no matching resource manufactures an empty instance of the
// expected type.
func (r *resolver) rehydrate(ctx context.Context, parent *scope.Scope, item *form.Item, results []cty.Value) bool {
	logger := ctxlog.FromContext(ctx)
	applied := false
	for _, child := range parent.Children() {
		if child.Item != item {
			continue
		}
		ctxNode := child.ByKind(scope.KindExtractionContext)
		if ctxNode == nil || ctxNode.Resolved() {
			continue
		}

		var key string
		if idNode := child.ByKind(scope.KindExtractionContextID); idNode != nil {
			res, err := r.eval.Evaluate(ctx, idNode.Text, child)
			if err != nil {
				logger.Warn("Extraction context id evaluation failed.", "expression", idNode.Text, "error", err)
			} else if res != nil && len(res.Values) == 1 && res.Values[0].Type() == cty.String {
				key = res.Values[0].AsString()
				idNode.SetValue(res.Values)
			}
		}

		resource, found := findByID(results, key)
		if !found {
			resource = emptyResource(resourceTypeOf(ctxNode.Text))
			logger.Debug("Manufactured empty resource for extraction context.",
				"item", item.LinkID, "key", key, "type", resourceTypeOf(ctxNode.Text))
		}
		ctxNode.SetValue([]cty.Value{resource})
		applied = true
	}
	return applied
}

// findByID locates the resource whose id attribute equals key.
func findByID(results []cty.Value, key string) (cty.Value, bool) {
	if key == "" {
		return cty.NilVal, false
	}
	for _, v := range results {
		if v == cty.NilVal || v.IsNull() || !v.Type().IsObjectType() || !v.Type().HasAttribute("id") {
			continue
		}
		id := v.GetAttr("id")
		if id.Type() == cty.String && !id.IsNull() && id.AsString() == key {
			return v, true
		}
	}
	return cty.NilVal, false
}

// resourceTypeOf derives the expected resource type from a query url: the
// portion before '?', stripped of any path prefix.
func resourceTypeOf(url string) string {
	head, _, _ := strings.Cut(url, "?")
	if i := strings.LastIndexByte(head, '/'); i >= 0 {
		head = head[i+1:]
	}
	return head
}

func emptyResource(resourceType string) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"resourceType": cty.StringVal(resourceType),
	})
}

func itemLinkID(s *scope.Scope) string {
	if s.Item != nil {
		return s.Item.LinkID
	}
	return ""
}
