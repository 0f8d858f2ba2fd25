package scheduler

import (
	"context"
	"log/slog"

	"github.com/tvqos/tvqos/internal/models"
)

// ProbeHandler runs one monitoring task for a single input and returns a
// human-readable result summary or a structured error. Implementations must
// contain their own failures at the task boundary per §7 — an error returned
// from Probe is only ever logged and swallowed by the Executor, never a
// signal to retry or propagate.
type ProbeHandler interface {
	// Probe runs the capture+analyze+emit pipeline for one input, bounded by
	// the per-input deadline already applied to ctx.
	Probe(ctx context.Context, input *models.InputSource) (string, error)
}

// Executor dispatches inputs to the appropriate probe handler by kind,
// collapsing the polymorphism of different probe classes into a
// discriminated-union strategy table (SPEC_FULL §9).
type Executor struct {
	handlers map[models.InputKind]ProbeHandler
	logger   *slog.Logger
}

// NewExecutor creates a new probe executor.
func NewExecutor() *Executor {
	return &Executor{
		handlers: make(map[models.InputKind]ProbeHandler),
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	return e
}

// RegisterHandler registers a handler for an input kind.
func (e *Executor) RegisterHandler(kind models.InputKind, handler ProbeHandler) {
	e.handlers[kind] = handler
}

// Execute runs the probe for a single input. Per-input dispatch is by kind:
// MPEGTS_UDP routes to the UDP probe path, HLS/HTTP route to the HLS probe
// path, anything else is a warn-and-skip (§4.1).
func (e *Executor) Execute(ctx context.Context, input *models.InputSource) {
	handler, ok := e.handlers[input.Kind]
	if !ok {
		e.logger.Warn("no probe handler registered for input kind, skipping",
			slog.String("input_id", input.ID.String()),
			slog.String("input_name", input.Name),
			slog.String("kind", string(input.Kind)))
		return
	}

	e.logger.Debug("probing input",
		slog.String("input_id", input.ID.String()),
		slog.String("input_name", input.Name),
		slog.String("kind", string(input.Kind)))

	result, err := handler.Probe(ctx, input)
	if err != nil {
		e.logger.Error("probe failed",
			slog.String("input_id", input.ID.String()),
			slog.String("input_name", input.Name),
			slog.Any("error", err))
		return
	}

	e.logger.Info("probe completed",
		slog.String("input_id", input.ID.String()),
		slog.String("input_name", input.Name),
		slog.String("result", result))
}
