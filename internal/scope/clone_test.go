package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/idgen"
)

// buildCloneFixture returns a root with one exploding scope: a launch
// context outside the subtree, a context expression and a dependent initial
// expression inside it.
func buildCloneFixture() (root, sub *Scope, launch, ctxExpr, initExpr *Context) {
	root = NewRoot()
	launch = NewLaunch(1, "patient", cty.StringVal("R1"))
	root.Append(launch)

	item := &form.Item{LinkID: "g", Type: "group"}
	sub = root.NewChild(item, &form.ResponseItem{LinkID: "g"})
	ctxExpr = NewExpression(2, KindPopulationContext, "obs", LanguagePath, "%patient.contact", item, nil)
	sub.Append(ctxExpr)
	ctxExpr.AddDependency(launch)

	childItem := &form.Item{LinkID: "q1", Type: "string"}
	childScope := sub.NewChild(childItem, &form.ResponseItem{LinkID: "q1"})
	initExpr = NewExpression(3, KindInitialExpression, "", LanguagePath, "%obs.id", childItem, nil)
	childScope.Append(initExpr)
	initExpr.AddDependency(ctxExpr)
	return root, sub, launch, ctxExpr, initExpr
}

func TestCloneSubtree(t *testing.T) {
	_, sub, launch, ctxExpr, initExpr := buildCloneFixture()
	ids := idgen.NewSequence()
	for i := 0; i < 3; i++ {
		ids.NextID() // advance past the fixture's ids
	}

	clone, mapping := sub.CloneSubtree(ids)

	t.Run("structure and lineage", func(t *testing.T) {
		require.Len(t, mapping, 2)
		cloneCtx := mapping[ctxExpr.ID()]
		require.NotNil(t, cloneCtx)
		assert.Same(t, ctxExpr, cloneCtx.ClonedFrom)
		assert.Equal(t, ctxExpr.Text, cloneCtx.Text)
		assert.NotEqual(t, ctxExpr.ID(), cloneCtx.ID())
		assert.Same(t, sub.Item, clone.Item)
		require.Len(t, clone.Children(), 1)
	})

	t.Run("internal edges are rewired to the clones", func(t *testing.T) {
		cloneInit := mapping[initExpr.ID()]
		cloneCtx := mapping[ctxExpr.ID()]
		require.NotNil(t, cloneInit)
		assert.Contains(t, cloneInit.Deps, cloneCtx.ID())
		assert.NotContains(t, cloneInit.Deps, ctxExpr.ID())
		assert.Contains(t, cloneCtx.Dependants, cloneInit.ID())
	})

	t.Run("external edges keep pointing at originals", func(t *testing.T) {
		cloneCtx := mapping[ctxExpr.ID()]
		assert.Contains(t, cloneCtx.Deps, launch.ID())
		assert.Contains(t, launch.Dependants, cloneCtx.ID())
	})

	t.Run("resolved values are carried over", func(t *testing.T) {
		ctxExpr.SetValue([]cty.Value{cty.StringVal("v")})
		clone2, mapping2 := sub.CloneSubtree(ids)
		require.NotNil(t, clone2)
		vals, ok := mapping2[ctxExpr.ID()].Value()
		require.True(t, ok)
		require.Len(t, vals, 1)
		assert.Equal(t, "v", vals[0].AsString())
	})

	t.Run("clone is detached until the caller splices it", func(t *testing.T) {
		assert.Nil(t, clone.Parent())
	})
}
