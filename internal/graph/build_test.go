package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/idgen"
	"github.com/vk/formscope/internal/scope"
	"github.com/vk/formscope/internal/testutil"
)

func newBuilder(eval scope.PathEvaluator, ids idgen.Provider) *Builder {
	if eval == nil {
		eval = &testutil.ScriptedEvaluator{}
	}
	return &Builder{Evaluator: eval, IDs: ids}
}

func TestBuildWiresVariableReferences(t *testing.T) {
	root := scope.NewRoot()
	ids := idgen.NewSequence()
	root.Append(scope.NewLaunch(ids.NextID(), "patient", cty.StringVal("R1")))

	item := &form.Item{LinkID: "q1", Type: "string"}
	child := root.NewChild(item, nil)
	node := scope.NewExpression(ids.NextID(), scope.KindInitialExpression, "", scope.LanguagePath, "%patient.name.first()", item, nil)
	child.Append(node)

	ctx, _ := testutil.ContextWithLogs()
	newBuilder(nil, ids).Build(ctx, root)

	launch := root.Lookup("patient")
	require.Contains(t, node.Deps, launch.ID())
	assert.Contains(t, launch.Dependants, node.ID())
}

func TestBuildReportsUnknownVariable(t *testing.T) {
	root := scope.NewRoot()
	ids := idgen.NewSequence()
	item := &form.Item{LinkID: "q1", Type: "string"}
	child := root.NewChild(item, nil)
	node := scope.NewExpression(ids.NextID(), scope.KindInitialExpression, "", scope.LanguagePath, "%missing.name", item, nil)
	child.Append(node)

	ctx, logs := testutil.ContextWithLogs()
	newBuilder(nil, ids).Build(ctx, root)

	assert.Empty(t, node.Deps)
	assert.Contains(t, logs.String(), "Unknown variable reference")
}

func TestBuildLiftsEmbeddedExpressions(t *testing.T) {
	root := scope.NewRoot()
	ids := idgen.NewSequence()
	root.Append(scope.NewLaunch(ids.NextID(), "patient", cty.StringVal("R1")))

	item := &form.Item{LinkID: "q1", Type: "string"}
	child := root.NewChild(item, nil)
	query := scope.NewExpression(ids.NextID(), scope.KindPopulationContext, "", scope.LanguageQuery,
		"Observation?subject={{%patient.id}}&code={{%patient.code}}", item, nil)
	child.Append(query)

	ctx, _ := testutil.ContextWithLogs()
	newBuilder(nil, ids).Build(ctx, root)

	contexts := child.Contexts()
	require.Len(t, contexts, 3, "one embedded node per {{...}} match")

	emb1, emb2 := contexts[1], contexts[2]
	assert.Equal(t, scope.KindEmbedded, emb1.Kind)
	assert.Equal(t, scope.LanguagePath, emb1.Language)
	assert.Equal(t, "%patient.id", emb1.Text)
	assert.Equal(t, "%patient.code", emb2.Text)

	assert.Contains(t, query.Deps, emb1.ID())
	assert.Contains(t, query.Deps, emb2.ID())
	assert.Contains(t, emb1.Dependants, query.ID())

	t.Run("embedded nodes get their own variable edges", func(t *testing.T) {
		launch := root.Lookup("patient")
		assert.Contains(t, emb1.Deps, launch.ID())
	})
}

func TestBuildResponseDependant(t *testing.T) {
	root := scope.NewRoot()
	ids := idgen.NewSequence()

	target := &form.Item{LinkID: "weight", Type: "decimal"}
	targetScope := root.NewChild(target, nil)
	initial := scope.NewExpression(ids.NextID(), scope.KindInitialExpression, "", scope.LanguagePath, "%patient.weight", target, nil)
	targetScope.Append(initial)

	item := &form.Item{LinkID: "bmi", Type: "decimal"}
	child := root.NewChild(item, nil)
	calc := scope.NewExpression(ids.NextID(), scope.KindCalculatedExpression, "", scope.LanguagePath,
		"%resource.item.where(linkId='weight').answer", item, nil)
	child.Append(calc)

	eval := &testutil.ScriptedEvaluator{Results: map[string][]cty.Value{
		"%questionnaire.item.where(linkId='weight').answer": {form.ItemVal(target)},
	}}

	ctx, _ := testutil.ContextWithLogs()
	newBuilder(eval, ids).Build(ctx, root)

	assert.True(t, calc.ResponseDependant)
	require.Contains(t, calc.Deps, initial.ID(),
		"response-dependent expression depends on the target item's initial expression")
	require.NotEmpty(t, eval.Calls)
	assert.Equal(t, "%questionnaire.item.where(linkId='weight').answer", eval.Calls[0],
		"%resource is rewritten before the synthesized lookup")
}
