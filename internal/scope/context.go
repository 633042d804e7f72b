package scope

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/form"
)

// Kind discriminates the context variants. Behavior is selected centrally in
// the resolver, so one record with a kind tag stands in for the whole union.
type Kind int

const (
	// KindLaunch marks an externally supplied named resource. Launch
	// contexts are created already resolved.
	KindLaunch Kind = iota
	KindPopulationContext
	KindExtractionContext
	KindInitialExpression
	KindVariableExpression
	KindCalculatedExpression
	KindExtractionContextID
	// KindEmbedded marks a path expression lifted out of a query's {{...}}
	// markers by the graph builder.
	KindEmbedded
)

var kindNames = map[Kind]string{
	KindLaunch:               "launch",
	KindPopulationContext:    "populationContext",
	KindExtractionContext:    "extractionContext",
	KindInitialExpression:    "initialExpression",
	KindVariableExpression:   "variable",
	KindCalculatedExpression: "calculatedExpression",
	KindExtractionContextID:  "extractionContextId",
	KindEmbedded:             "embedded",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Language tags the expression language of a context.
type Language int

const (
	LanguageNone Language = iota
	LanguagePath
	LanguageQuery
)

func (l Language) String() string {
	switch l {
	case LanguagePath:
		return form.LangFHIRPath
	case LanguageQuery:
		return form.LangFHIRQuery
	}
	return "none"
}

// Mode selects which expression kinds are active for one resolution pass.
type Mode int

const (
	ModePopulation Mode = iota
	ModeExtraction
)

func (m Mode) String() string {
	if m == ModeExtraction {
		return "extraction"
	}
	return "population"
}

// PermittedIn reports whether a context of this kind participates in a pass
// running under the given mode.
func (k Kind) PermittedIn(m Mode) bool {
	switch m {
	case ModePopulation:
		return k != KindExtractionContext && k != KindExtractionContextID
	case ModeExtraction:
		return k != KindPopulationContext && k != KindInitialExpression
	}
	return false
}

// Context is one entry in a scope: a launch context or an expression node.
type Context struct {
	id   int
	Kind Kind

	// Name is the symbol under which lookups can find this context. Empty
	// for anonymous expressions.
	Name string

	// Language and Text describe the expression. Text is rewritten in place
	// when an embedded result is spliced into a query.
	Language Language
	Text     string

	// Item and ResponseItem record the creation site. Both are nil for
	// root-scope contexts.
	Item         *form.Item
	ResponseItem *form.ResponseItem

	// Deps holds the contexts this one reads; Dependants is the reverse
	// index. The two are maintained symmetrically by AddDependency.
	Deps       map[int]*Context
	Dependants map[int]*Context

	// ResponseDependant is set when the expression references the
	// response-relative symbols (%resource, %context).
	ResponseDependant bool

	// SourceResource is the resource an already-resolved path expression was
	// evaluated against, when the evaluator reported one.
	SourceResource cty.Value

	// ClonedFrom points at the original this context was cloned from during
	// fan-out.
	ClonedFrom *Context

	owner    *Scope
	value    []cty.Value
	resolved bool
}

// NewLaunch builds a resolved launch context holding one named resource.
func NewLaunch(id int, name string, resource cty.Value) *Context {
	c := newContext(id, KindLaunch)
	c.Name = name
	c.value = []cty.Value{resource}
	c.resolved = true
	return c
}

// NewExpression builds an unresolved expression context.
func NewExpression(id int, kind Kind, name string, lang Language, text string, item *form.Item, ri *form.ResponseItem) *Context {
	c := newContext(id, kind)
	c.Name = name
	c.Language = lang
	c.Text = text
	c.Item = item
	c.ResponseItem = ri
	return c
}

func newContext(id int, kind Kind) *Context {
	return &Context{
		id:         id,
		Kind:       kind,
		Deps:       make(map[int]*Context),
		Dependants: make(map[int]*Context),
	}
}

// ID returns the context's pass-unique identifier.
func (c *Context) ID() int { return c.id }

// Scope returns the scope that owns this context.
func (c *Context) Scope() *Scope { return c.owner }

// IsExpression reports whether the context is an expression node rather than
// a launch context.
func (c *Context) IsExpression() bool { return c.Kind != KindLaunch }

// AddDependency records that c reads dep, maintaining the reverse index.
// Self-edges are ignored.
func (c *Context) AddDependency(dep *Context) {
	if dep == nil || dep == c {
		return
	}
	c.Deps[dep.id] = dep
	dep.Dependants[c.id] = c
}

// Resolved reports whether a value has been assigned, including the empty
// list.
func (c *Context) Resolved() bool { return c.resolved }

// Value returns the resolved value list and whether one has been assigned.
func (c *Context) Value() ([]cty.Value, bool) {
	return c.value, c.resolved
}

// SetValue assigns the value slot and marks the context resolved. nil is a
// legal assignment and records an empty result.
func (c *Context) SetValue(vals []cty.Value) {
	c.value = vals
	c.resolved = true
}

// Ready reports whether the context is unresolved with every dependency
// resolved.
func (c *Context) Ready() bool {
	if c.resolved {
		return false
	}
	for _, dep := range c.Deps {
		if !dep.resolved {
			return false
		}
	}
	return true
}
