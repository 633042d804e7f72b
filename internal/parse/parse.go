// Package parse walks the form tree in lexical order and materializes the
// scope tree: one child scope per item/response pairing, with every
// recognized expression extension turned into a context in its scope.
package parse

import (
	"context"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/form"
	"github.com/vk/formscope/internal/idgen"
	"github.com/vk/formscope/internal/scope"
)

// Build constructs the scope tree for one resolution pass. The response may
// be nil; launch contexts land in the root scope in order.
func Build(ctx context.Context, q *form.Questionnaire, qr *form.QuestionnaireResponse, launch []scope.Launch, mode scope.Mode, ids idgen.Provider) *scope.Scope {
	root := scope.NewRoot()
	for _, l := range launch {
		root.Append(scope.NewLaunch(ids.NextID(), l.Name, l.Resource))
	}

	parseExtensions(ctx, root, q.Extension, nil, nil, mode, ids)

	var respItems []*form.ResponseItem
	if qr != nil {
		respItems = qr.Item
	}
	walkItems(ctx, root, q.Item, respItems, mode, ids)
	return root
}

// walkItems pushes one child scope per item/response pairing and recurses.
// A response item repeated N times drives N scope pushes; an item with no
// response gets a synthesized empty one.
func walkItems(ctx context.Context, parent *scope.Scope, items []*form.Item, resp []*form.ResponseItem, mode scope.Mode, ids idgen.Provider) {
	for _, item := range items {
		matches := matchResponses(item.LinkID, resp)
		if len(matches) == 0 {
			matches = []*form.ResponseItem{{LinkID: item.LinkID}}
		}
		for _, ri := range matches {
			child := parent.NewChild(item, ri)
			parseExtensions(ctx, child, item.Extension, item, ri, mode, ids)
			materializeDefaults(item, ri)
			walkItems(ctx, child, item.Item, ri.Item, mode, ids)
		}
	}
}

func matchResponses(linkID string, resp []*form.ResponseItem) []*form.ResponseItem {
	var out []*form.ResponseItem
	for _, ri := range resp {
		if ri.LinkID == linkID {
			out = append(out, ri)
		}
	}
	return out
}

// extensionRule maps a recognized url to its node kind and the mode gating
// its recognition. nil gate means the extension is active in either mode.
type extensionRule struct {
	kind scope.Kind
	mode *scope.Mode
}

func modePtr(m scope.Mode) *scope.Mode { return &m }

var extensionRules = map[string]extensionRule{
	form.ExtPopulationContext:    {scope.KindPopulationContext, modePtr(scope.ModePopulation)},
	form.ExtExtractionContext:    {scope.KindExtractionContext, modePtr(scope.ModeExtraction)},
	form.ExtInitialExpression:    {scope.KindInitialExpression, modePtr(scope.ModePopulation)},
	form.ExtVariable:             {scope.KindVariableExpression, nil},
	form.ExtCalculatedExpression: {scope.KindCalculatedExpression, nil},
	form.ExtExtractionContextID:  {scope.KindExtractionContextID, modePtr(scope.ModeExtraction)},
}

// parseExtensions turns the recognized expression extensions into contexts
// in s. Malformed extensions are reported and skipped; nothing here is
// fatal.
func parseExtensions(ctx context.Context, s *scope.Scope, exts []form.Extension, item *form.Item, ri *form.ResponseItem, mode scope.Mode, ids idgen.Provider) {
	logger := ctxlog.FromContext(ctx)
	for _, ext := range exts {
		rule, ok := extensionRules[ext.URL]
		if !ok {
			logger.Debug("Skipping unrecognized extension.", "url", ext.URL)
			continue
		}
		if rule.mode != nil && *rule.mode != mode {
			continue
		}
		expr := ext.ValueExpression
		if expr == nil {
			logger.Warn("Extension carries no expression value, skipping.", "url", ext.URL)
			continue
		}
		if expr.Expression == "" {
			logger.Warn("Extension carries an empty expression, skipping.", "url", ext.URL)
			continue
		}
		lang, ok := acceptLanguage(rule.kind, expr.Language)
		if !ok {
			logger.Warn("Unsupported expression language for extension, skipping.",
				"url", ext.URL, "language", expr.Language)
			continue
		}
		node := scope.NewExpression(ids.NextID(), rule.kind, expr.Name, lang, expr.Expression, item, ri)
		s.Append(node)
	}
}

// acceptLanguage checks the language against the kind: the two *Context
// kinds accept path and query, everything else is path only.
func acceptLanguage(kind scope.Kind, lang string) (scope.Language, bool) {
	switch lang {
	case form.LangFHIRPath:
		return scope.LanguagePath, true
	case form.LangFHIRQuery:
		if kind == scope.KindPopulationContext || kind == scope.KindExtractionContext {
			return scope.LanguageQuery, true
		}
	}
	return scope.LanguageNone, false
}

// materializeDefaults copies an item's declared initial values into the
// paired response item when it has no answers yet. Downstream consumers read
// these; the resolver itself does not.
func materializeDefaults(item *form.Item, ri *form.ResponseItem) {
	if item == nil || ri == nil || !item.Answerable() || len(ri.Answer) > 0 {
		return
	}
	for _, in := range item.Initial {
		if a := form.AnswerFromValue(in.Value()); a != nil {
			ri.Answer = append(ri.Answer, a)
		}
	}
}
