package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tvqos/tvqos/internal/models"
)

// CycleTracker is the narrow view of the Scheduler the status handler needs
// (§6.1), satisfied structurally by *scheduler.Scheduler.
type CycleTracker interface {
	LastSummary() models.CycleSummary
}

// StatusHandler serves /status: a read-only summary of the most recently
// completed monitoring cycle.
type StatusHandler struct {
	scheduler CycleTracker
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(scheduler CycleTracker) *StatusHandler {
	return &StatusHandler{scheduler: scheduler}
}

// StatusInput is the input for the status endpoint.
type StatusInput struct{}

// StatusOutput is the output for the status endpoint.
type StatusOutput struct {
	Body CycleSummaryResponse
}

// Register registers the status route with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/status",
		Summary:     "Monitoring cycle status",
		Description: "Returns a summary of the most recently completed monitoring cycle",
		Tags:        []string{"System"},
	}, h.GetStatus)
}

// GetStatus returns the most recently completed cycle's summary.
func (h *StatusHandler) GetStatus(_ context.Context, _ *StatusInput) (*StatusOutput, error) {
	summary := h.scheduler.LastSummary()
	return &StatusOutput{
		Body: CycleSummaryResponse{
			CycleID:        summary.CycleID,
			StartedAt:      summary.StartedAt.UTC().Format(time.RFC3339),
			CompletedAt:    summary.CompletedAt.UTC().Format(time.RFC3339),
			InputsProbed:   summary.InputsProbed,
			InputsFailed:   summary.InputsFailed,
			DurationMillis: summary.DurationMillis,
		},
	}, nil
}
