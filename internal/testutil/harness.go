// Package testutil carries the shared fixtures of the resolver tests: log
// capture, a scripted path evaluator, and questionnaire builders.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/scope"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements io.Writer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements fmt.Stringer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// ContextWithLogs returns a context whose logger records debug-level output
// into the returned buffer.
func ContextWithLogs() (context.Context, *SafeBuffer) {
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// ScriptedEvaluator maps expression text verbatim onto canned results. An
// expression with no script entry evaluates to nil, the "not evaluable"
// outcome.
type ScriptedEvaluator struct {
	Results map[string][]cty.Value
	// Sources optionally attaches a source resource per expression.
	Sources map[string]cty.Value
	// Calls records every evaluated expression in order.
	Calls []string
}

// Evaluate implements scope.PathEvaluator.
func (e *ScriptedEvaluator) Evaluate(ctx context.Context, expr string, _ *scope.Scope) (*scope.PathResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.Calls = append(e.Calls, expr)
	vals, ok := e.Results[expr]
	if !ok {
		return nil, nil
	}
	res := &scope.PathResult{Values: vals}
	if e.Sources != nil {
		res.Source = e.Sources[expr]
	}
	return res, nil
}
