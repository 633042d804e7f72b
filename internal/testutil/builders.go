package testutil

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
)

// ExprExt builds an expression-bearing extension.
func ExprExt(url, name, language, expression string) form.Extension {
	return form.Extension{
		URL: url,
		ValueExpression: &form.Expression{
			Name:       name,
			Language:   language,
			Expression: expression,
		},
	}
}

// Resource builds a cty object resource from attribute pairs, always
// including the given type and id.
func Resource(resourceType, id string, attrs map[string]cty.Value) cty.Value {
	m := map[string]cty.Value{
		"resourceType": cty.StringVal(resourceType),
	}
	if id != "" {
		m["id"] = cty.StringVal(id)
	}
	for k, v := range attrs {
		m[k] = v
	}
	return cty.ObjectVal(m)
}
