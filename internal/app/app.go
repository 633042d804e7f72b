// Package app wires a scenario file, the reference path engine, and the
// fixture loader into one resolution pass and reports the resulting scope
// tree.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/formscope/internal/ctxlog"
	"github.com/vk/formscope/internal/fhirpath"
	"github.com/vk/formscope/internal/resolve"
	"github.com/vk/formscope/internal/scenario"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp builds an application with its own isolated logger.
func NewApp(outW io.Writer, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")
	return &App{outW: outW, logger: logger, config: cfg}
}

// Run loads the scenario, executes one resolution pass, and writes the
// resolved scope tree report.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	scn, err := scenario.Load(a.config.ScenarioPath)
	if err != nil {
		return err
	}
	mode, err := scn.ResolveMode()
	if err != nil {
		return err
	}
	q, err := scn.ReadQuestionnaire()
	if err != nil {
		return err
	}
	qr, err := scn.ReadResponse()
	if err != nil {
		return err
	}
	launches, err := scn.Launches()
	if err != nil {
		return err
	}
	src, err := scn.Loader()
	if err != nil {
		return err
	}
	a.logger.Info("Scenario loaded.", "mode", mode.String(),
		"launchContexts", len(launches), "fixtures", len(src))

	root, err := resolve.Resolve(ctx, resolve.Options{
		Questionnaire: q,
		Response:      qr,
		Launch:        launches,
		Loader:        src,
		Evaluator:     fhirpath.New(q, qr),
		Mode:          mode,
	})
	if err != nil {
		return fmt.Errorf("resolution pass failed: %w", err)
	}

	a.logger.Info("Resolution pass complete.")
	return writeReport(a.outW, root)
}
