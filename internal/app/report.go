package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/scope"
)

// writeReport prints the resolved scope tree, one indented line per scope
// and context.
func writeReport(w io.Writer, root *scope.Scope) error {
	return writeScope(w, root, 0)
}

func writeScope(w io.Writer, s *scope.Scope, depth int) error {
	indent := strings.Repeat("  ", depth)
	label := "root"
	if s.Item != nil {
		label = s.Item.LinkID
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", indent, label); err != nil {
		return err
	}
	for _, c := range s.Contexts() {
		if _, err := fmt.Fprintf(w, "%s  [%s] %s\n", indent, c.Kind, describeContext(c)); err != nil {
			return err
		}
	}
	for _, child := range s.Children() {
		if err := writeScope(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func describeContext(c *scope.Context) string {
	var b strings.Builder
	if c.Name != "" {
		b.WriteString(c.Name)
		b.WriteString(" = ")
	}
	if c.Text != "" {
		fmt.Fprintf(&b, "%q ", c.Text)
	}
	vals, resolved := c.Value()
	if !resolved {
		b.WriteString("(unresolved)")
		return b.String()
	}
	rendered := make([]string, 0, len(vals))
	for _, v := range vals {
		rendered = append(rendered, renderReportValue(v))
	}
	fmt.Fprintf(&b, "=> [%s]", strings.Join(rendered, ", "))
	return b.String()
}

func renderReportValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case cty.Number:
		return v.AsBigFloat().Text('f', -1)
	case cty.Bool:
		return fmt.Sprintf("%t", v.True())
	}
	if v.Type().IsCapsuleType() {
		return "<item>"
	}
	if raw, err := form.EncodeResource(v); err == nil {
		return string(raw)
	}
	return "<value>"
}
