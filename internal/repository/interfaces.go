// Package repository defines data access interfaces for tvqos entities.
// All database access goes through these interfaces, enabling easy testing
// and configuration-store backend switching.
package repository

import (
	"context"
	"time"

	"github.com/tvqos/tvqos/internal/models"
)

// InputSourceRepository is the reference configuration-store adapter contract
// (SPEC_FULL §4.1a). The core calls only these two operations; any
// persistence mechanism satisfying them is a legal substitute.
type InputSourceRepository interface {
	// ListEnabled returns the current enabled InputSource set for a cycle.
	ListEnabled(ctx context.Context) ([]*models.InputSource, error)
	// UpdateSnapshot writes back the artifact path and capture instant for a
	// successful Snapshot Coordinator run (§4.7, §6).
	UpdateSnapshot(ctx context.Context, id models.ULID, path string, at time.Time) error
}

// SnapshotRepository persists SnapshotRecord rows in the reference adapter,
// one per successful frame-grabber invocation.
type SnapshotRepository interface {
	Create(ctx context.Context, record *models.SnapshotRecord) error
	GetLatestByInputID(ctx context.Context, inputID models.ULID) (*models.SnapshotRecord, error)
}
