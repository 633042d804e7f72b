package scope

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/idgen"
)

// CloneSubtree deep-copies the scope with all descendant scopes and
// contexts, allocating fresh ids and recording ClonedFrom back-references.
// Dependency edges between two contexts inside the subtree are rewritten to
// join their clones; edges reaching outside the subtree keep pointing at the
// unchanged originals. The returned mapping is keyed by original context id.
//
// The clone is detached: the caller decides where it hangs (fan-out replaces
// the original with N clones in the parent's child list).
func (s *Scope) CloneSubtree(ids idgen.Provider) (*Scope, map[int]*Context) {
	mapping := make(map[int]*Context)
	clone := s.copyStructure(ids, mapping)
	s.rewireEdges(mapping)
	return clone, mapping
}

// copyStructure performs the first phase: scopes and contexts are duplicated
// without any edges.
func (s *Scope) copyStructure(ids idgen.Provider, mapping map[int]*Context) *Scope {
	clone := &Scope{Item: s.Item, ResponseItem: s.ResponseItem}
	for _, c := range s.contexts {
		nc := newContext(ids.NextID(), c.Kind)
		nc.Name = c.Name
		nc.Language = c.Language
		nc.Text = c.Text
		nc.Item = c.Item
		nc.ResponseItem = c.ResponseItem
		nc.ResponseDependant = c.ResponseDependant
		nc.SourceResource = c.SourceResource
		nc.ClonedFrom = c
		nc.resolved = c.resolved
		if c.value != nil {
			nc.value = append([]cty.Value(nil), c.value...)
		}
		clone.Append(nc)
		mapping[c.id] = nc
	}
	for _, child := range s.children {
		cc := child.copyStructure(ids, mapping)
		cc.parent = clone
		clone.children = append(clone.children, cc)
	}
	return clone
}

// rewireEdges performs the second phase: for every original context in the
// subtree, its clone gets the same dependencies, mapped through the clone
// table where the dependency was itself cloned.
func (s *Scope) rewireEdges(mapping map[int]*Context) {
	s.Walk(func(sc *Scope) {
		for _, orig := range sc.contexts {
			nc := mapping[orig.id]
			for _, dep := range orig.Deps {
				if cloneDep, ok := mapping[dep.id]; ok {
					nc.AddDependency(cloneDep)
				} else {
					nc.AddDependency(dep)
				}
			}
		}
	})
}
