// Package scope provides the mutable scope tree the resolver works on. Each
// scope mirrors one form item (the root mirrors the form itself), owns an
// ordered list of contexts, and supports symbol lookup walking toward the
// root.
package scope

import (
	"sort"

	"github.com/vk/formscope/internal/form"
)

// Scope is one node of the scope tree. The tree owns its descendants; the
// parent reference is a plain back-pointer.
type Scope struct {
	parent   *Scope
	children []*Scope

	// Item and ResponseItem tie the scope to its creation site. Both are nil
	// only at the root.
	Item         *form.Item
	ResponseItem *form.ResponseItem

	contexts []*Context
}

// NewRoot returns an empty root scope. The root exists even for the empty
// form and holds the launch contexts.
func NewRoot() *Scope {
	return &Scope{}
}

// NewChild creates a child scope for the given item/response pairing and
// appends it to this scope's children.
func (s *Scope) NewChild(item *form.Item, ri *form.ResponseItem) *Scope {
	child := &Scope{parent: s, Item: item, ResponseItem: ri}
	s.children = append(s.children, child)
	return child
}

// Parent returns the enclosing scope, or nil at the root.
func (s *Scope) Parent() *Scope { return s.parent }

// IsRoot reports whether the scope has no parent.
func (s *Scope) IsRoot() bool { return s.parent == nil }

// Children returns the ordered child scopes.
func (s *Scope) Children() []*Scope { return s.children }

// Contexts returns the scope's ordered context list.
func (s *Scope) Contexts() []*Context { return s.contexts }

// Append adds a context to the scope and records the ownership
// back-reference.
func (s *Scope) Append(c *Context) {
	c.owner = s
	s.contexts = append(s.contexts, c)
}

// Lookup resolves a symbol to the nearest context named x, searching this
// scope first and then each ancestor in turn. Returns nil when no scope on
// the path to the root defines the name.
func (s *Scope) Lookup(name string) *Context {
	for cur := s; cur != nil; cur = cur.parent {
		for _, c := range cur.contexts {
			if c.Name != "" && c.Name == name {
				return c
			}
		}
	}
	return nil
}

// ByKind returns the first context of the given kind in this scope, or nil.
func (s *Scope) ByKind(k Kind) *Context {
	for _, c := range s.contexts {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// Walk visits the scope and every descendant in lexical (preorder) order.
func (s *Scope) Walk(fn func(*Scope)) {
	fn(s)
	for _, child := range s.children {
		child.Walk(fn)
	}
}

// Expressions collects every expression context in the subtree in lexical
// order.
func (s *Scope) Expressions() []*Context {
	var out []*Context
	s.Walk(func(sc *Scope) {
		for _, c := range sc.contexts {
			if c.IsExpression() {
				out = append(out, c)
			}
		}
	})
	return out
}

// ExpressionsByID collects every expression context in the subtree sorted by
// id, which gives a creation-order traversal independent of tree shape.
func (s *Scope) ExpressionsByID() []*Context {
	out := s.Expressions()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// FindItemScope locates the first scope in the subtree mirroring the given
// form item.
func (s *Scope) FindItemScope(item *form.Item) *Scope {
	var found *Scope
	s.Walk(func(sc *Scope) {
		if found == nil && sc.Item == item {
			found = sc
		}
	})
	return found
}

// Root walks up to the root of the tree.
func (s *Scope) Root() *Scope {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// ReplaceChild splices the given replacement scopes into the child list at
// the position old occupies. Used by fan-out: the exploding scope is
// replaced by its clones in order. No-op when old is not a child.
func (s *Scope) ReplaceChild(old *Scope, repl []*Scope) {
	for i, child := range s.children {
		if child != old {
			continue
		}
		next := make([]*Scope, 0, len(s.children)-1+len(repl))
		next = append(next, s.children[:i]...)
		for _, r := range repl {
			r.parent = s
			next = append(next, r)
		}
		next = append(next, s.children[i+1:]...)
		s.children = next
		return
	}
}
