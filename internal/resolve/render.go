package resolve

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/formscope/internal/form"
)

// renderValue produces the textual form of a resolved element for splicing
// into query text.
func renderValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return ""
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	}
	if converted, err := convert.Convert(v, cty.String); err == nil {
		return converted.AsString()
	}
	if raw, err := form.EncodeResource(v); err == nil {
		return string(raw)
	}
	return ""
}

// countNonPrimitive counts the elements that are compound values (resources
// and the like) rather than path-language primitives.
func countNonPrimitive(vals []cty.Value) int {
	n := 0
	for _, v := range vals {
		if v == cty.NilVal || v.IsNull() {
			continue
		}
		ty := v.Type()
		if ty.IsObjectType() || ty.IsMapType() || ty.IsCapsuleType() {
			n++
		}
	}
	return n
}
