package form

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Capsule types let item references travel through the cty value space
// without losing their identity. The path evaluator returns them when an
// expression lands on a form or response item rather than a leaf value.
var (
	ItemType         = cty.Capsule("questionnaire_item", reflect.TypeOf(Item{}))
	ResponseItemType = cty.Capsule("response_item", reflect.TypeOf(ResponseItem{}))
)

// ItemVal wraps a form item as a cty value.
func ItemVal(it *Item) cty.Value {
	return cty.CapsuleVal(ItemType, it)
}

// ResponseItemVal wraps a response item as a cty value.
func ResponseItemVal(ri *ResponseItem) cty.Value {
	return cty.CapsuleVal(ResponseItemType, ri)
}

// AsItem unwraps a form item capsule.
func AsItem(v cty.Value) (*Item, bool) {
	if v.Type() != ItemType {
		return nil, false
	}
	return v.EncapsulatedValue().(*Item), true
}

// AsResponseItem unwraps a response item capsule.
func AsResponseItem(v cty.Value) (*ResponseItem, bool) {
	if v.Type() != ResponseItemType {
		return nil, false
	}
	return v.EncapsulatedValue().(*ResponseItem), true
}

// DecodeResource turns a raw JSON resource into a cty value using the type
// implied by the document itself.
func DecodeResource(raw []byte) (cty.Value, error) {
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, fmt.Errorf("implying resource type: %w", err)
	}
	v, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding resource: %w", err)
	}
	return v, nil
}

// EncodeResource renders a cty value back to JSON.
func EncodeResource(v cty.Value) ([]byte, error) {
	return ctyjson.Marshal(v, v.Type())
}

// Value converts an initial entry to its cty representation, or cty.NilVal
// when the entry carries no value.
func (in Initial) Value() cty.Value {
	switch {
	case in.ValueBoolean != nil:
		return cty.BoolVal(*in.ValueBoolean)
	case in.ValueInteger != nil:
		return cty.NumberIntVal(int64(*in.ValueInteger))
	case in.ValueDecimal != nil:
		return cty.NumberFloatVal(*in.ValueDecimal)
	case in.ValueString != nil:
		return cty.StringVal(*in.ValueString)
	}
	return cty.NilVal
}

// Value converts an answer to its cty representation, or cty.NilVal when the
// answer carries no value.
func (a *Answer) Value() cty.Value {
	switch {
	case a.ValueBoolean != nil:
		return cty.BoolVal(*a.ValueBoolean)
	case a.ValueInteger != nil:
		return cty.NumberIntVal(int64(*a.ValueInteger))
	case a.ValueDecimal != nil:
		return cty.NumberFloatVal(*a.ValueDecimal)
	case a.ValueString != nil:
		return cty.StringVal(*a.ValueString)
	}
	return cty.NilVal
}

// AnswerFromValue builds an answer for a cty leaf value. Values that do not
// map onto an answer slot (objects, capsules) return nil.
func AnswerFromValue(v cty.Value) *Answer {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	switch v.Type() {
	case cty.Bool:
		b := v.True()
		return &Answer{ValueBoolean: &b}
	case cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i64, _ := bf.Int64()
			i := int(i64)
			return &Answer{ValueInteger: &i}
		}
		f, _ := bf.Float64()
		return &Answer{ValueDecimal: &f}
	case cty.String:
		s := v.AsString()
		return &Answer{ValueString: &s}
	}
	return nil
}

// AnswerValues flattens a response item's answers to cty values, dropping
// answers without a value.
func (ri *ResponseItem) AnswerValues() []cty.Value {
	var vals []cty.Value
	for _, a := range ri.Answer {
		if v := a.Value(); v != cty.NilVal {
			vals = append(vals, v)
		}
	}
	return vals
}
