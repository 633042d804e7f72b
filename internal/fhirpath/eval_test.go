package fhirpath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/scope"
)

func TestSplitTokens(t *testing.T) {
	cases := []struct {
		expr string
		want []string
	}{
		{"%patient.name", []string{"%patient", "name"}},
		{"%patient.name.first()", []string{"%patient", "name", "first()"}},
		{"item.where(linkId='a.b').answer", []string{"item", "where(linkId='a.b')", "answer"}},
		{"'lit.eral'", []string{"'lit.eral'"}},
		{"", []string{""}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SplitTokens(tc.expr), tc.expr)
	}
}

func TestVariableName(t *testing.T) {
	name, ok := VariableName("%patient")
	require.True(t, ok)
	assert.Equal(t, "patient", name)

	name, ok = VariableName("%my_var2")
	require.True(t, ok)
	assert.Equal(t, "my_var2", name)

	_, ok = VariableName("patient")
	assert.False(t, ok)
	_, ok = VariableName("%")
	assert.False(t, ok)
}

// env builds a root scope with one resolved launch resource.
func env(t *testing.T, name, raw string) *scope.Scope {
	t.Helper()
	v, err := form.DecodeResource([]byte(raw))
	require.NoError(t, err)
	root := scope.NewRoot()
	root.Append(scope.NewLaunch(1, name, v))
	return root
}

func TestEvaluateVariableTraversal(t *testing.T) {
	root := env(t, "patient", `{"resourceType":"Patient","id":"P1","name":[{"family":"Smith"},{"family":"Jones"}]}`)
	e := New(nil, nil)

	t.Run("attribute chain flattens collections", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%patient.name.family", root)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Len(t, res.Values, 2)
		assert.Equal(t, "Smith", res.Values[0].AsString())
		assert.Equal(t, "Jones", res.Values[1].AsString())
	})

	t.Run("source resource is reported", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%patient.id", root)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.False(t, res.Source.IsNull())
		assert.Equal(t, "P1", res.Source.GetAttr("id").AsString())
	})

	t.Run("missing attribute evaluates to empty", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%patient.telecom", root)
		require.NoError(t, err)
		require.NotNil(t, res, "empty is distinguishable from not evaluable")
		assert.Empty(t, res.Values)
	})

	t.Run("unbound variable is not evaluable", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%nope.id", root)
		require.NoError(t, err)
		assert.Nil(t, res)
	})
}

func TestEvaluateFunctions(t *testing.T) {
	root := env(t, "patient", `{"resourceType":"Patient","id":"P1","name":[{"family":"Smith"},{"family":"Jones"}]}`)
	e := New(nil, nil)

	t.Run("first", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%patient.name.family.first()", root)
		require.NoError(t, err)
		require.Len(t, res.Values, 1)
		assert.Equal(t, "Smith", res.Values[0].AsString())
	})

	t.Run("exists and count", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%patient.name.exists()", root)
		require.NoError(t, err)
		require.Len(t, res.Values, 1)
		assert.True(t, res.Values[0].True())

		res, err = e.Evaluate(context.Background(), "%patient.name.count()", root)
		require.NoError(t, err)
		require.Len(t, res.Values, 1)
		n, _ := res.Values[0].AsBigFloat().Int64()
		assert.Equal(t, int64(2), n)
	})

	t.Run("unsupported function is not evaluable", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%patient.name.aggregate()", root)
		require.NoError(t, err)
		assert.Nil(t, res)
	})
}

func TestEvaluateQuestionnaireRoots(t *testing.T) {
	target := &form.Item{LinkID: "weight", Type: "decimal"}
	q := &form.Questionnaire{Item: []*form.Item{
		{LinkID: "g", Type: "group", Item: []*form.Item{target}},
	}}
	e := New(q, nil)
	root := scope.NewRoot()

	res, err := e.Evaluate(context.Background(), "%questionnaire.item.item.where(linkId='weight')", root)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Values, 1)
	got, ok := form.AsItem(res.Values[0])
	require.True(t, ok)
	assert.Same(t, target, got)
}

func TestEvaluateResponseRoots(t *testing.T) {
	val := "72"
	qr := &form.QuestionnaireResponse{Item: []*form.ResponseItem{
		{LinkID: "weight", Answer: []*form.Answer{{ValueString: &val}}},
	}}
	e := New(nil, qr)

	root := scope.NewRoot()
	item := &form.Item{LinkID: "weight", Type: "string"}
	child := root.NewChild(item, qr.Item[0])

	t.Run("resource walks the response tree", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%resource.item.where(linkId='weight').answer", root)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Len(t, res.Values, 1)
		assert.Equal(t, "72", res.Values[0].AsString())
	})

	t.Run("context is the nearest response item", func(t *testing.T) {
		res, err := e.Evaluate(context.Background(), "%context.answer", child)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Len(t, res.Values, 1)
		assert.Equal(t, "72", res.Values[0].AsString())
	})
}

func TestEvaluateLiteral(t *testing.T) {
	e := New(nil, nil)
	res, err := e.Evaluate(context.Background(), "'P7'", scope.NewRoot())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Values, 1)
	assert.Equal(t, "P7", res.Values[0].AsString())
}

func TestEvaluateCanceled(t *testing.T) {
	e := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx, "'x'", scope.NewRoot())
	assert.ErrorIs(t, err, context.Canceled)
}
