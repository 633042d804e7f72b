package graph

import (
	"fmt"
	"sort"

	"github.com/vk/formscope/internal/scope"
)

// DetectCycles proves the dependency graph over the tree's expression
// contexts is acyclic. Depth-first search with two sets: permanent holds
// fully explored nodes known to be safe, temporary holds the current
// recursion stack. Revisiting a temporary node means the forward edges loop
// back, which fails the pass.
func DetectCycles(root *scope.Scope) error {
	permanent := make(map[int]bool)
	temporary := make(map[int]bool)

	var visit func(c *scope.Context) error
	visit = func(c *scope.Context) error {
		if permanent[c.ID()] {
			return nil
		}
		if temporary[c.ID()] {
			return fmt.Errorf("cycle detected involving expression %q", c.Text)
		}
		temporary[c.ID()] = true
		for _, dep := range sortedByID(c.Deps) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, c.ID())
		permanent[c.ID()] = true
		return nil
	}

	for _, node := range root.ExpressionsByID() {
		if err := visit(node); err != nil {
			return err
		}
	}
	return nil
}

// TopoOrder returns the given contexts with every dependency ahead of its
// dependants, breaking ties by id so two identical graphs order
// identically. A gray revisit reports the same cycle DetectCycles would.
func TopoOrder(nodes []*scope.Context) ([]*scope.Context, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int)
	in := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		in[n.ID()] = true
	}

	var order []*scope.Context
	var visit func(c *scope.Context) error
	visit = func(c *scope.Context) error {
		switch color[c.ID()] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected involving expression %q", c.Text)
		}
		color[c.ID()] = gray
		for _, dep := range sortedByID(c.Deps) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[c.ID()] = black
		if in[c.ID()] {
			order = append(order, c)
		}
		return nil
	}

	for _, n := range nodes {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func sortedByID(m map[int]*scope.Context) []*scope.Context {
	out := make([]*scope.Context, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
