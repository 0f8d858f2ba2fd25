package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tvqos/tvqos/internal/models"
	"gorm.io/gorm"
)

// inputSourceRepo implements InputSourceRepository using GORM.
type inputSourceRepo struct {
	db *gorm.DB
}

// NewInputSourceRepository creates a new InputSourceRepository.
func NewInputSourceRepository(db *gorm.DB) *inputSourceRepo {
	return &inputSourceRepo{db: db}
}

// ListEnabled retrieves all enabled input sources, ordered by name for a
// stable FIFO enumeration order (§4.1).
func (r *inputSourceRepo) ListEnabled(ctx context.Context) ([]*models.InputSource, error) {
	var sources []*models.InputSource
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfigStoreUnreachable, err)
	}
	return sources, nil
}

// UpdateSnapshot writes back the artifact path and capture instant for an
// input after a successful Snapshot Coordinator run.
func (r *inputSourceRepo) UpdateSnapshot(ctx context.Context, id models.ULID, path string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.InputSource{}).Where("id = ?", id).Updates(map[string]any{
		"snapshot_path":    path,
		"last_snapshot_at": at,
	})
	if result.Error != nil {
		return fmt.Errorf("updating input source snapshot: %w", result.Error)
	}
	return nil
}

// snapshotRepo implements SnapshotRepository using GORM.
type snapshotRepo struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) *snapshotRepo {
	return &snapshotRepo{db: db}
}

// Create persists a new snapshot record.
func (r *snapshotRepo) Create(ctx context.Context, record *models.SnapshotRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("creating snapshot record: %w", err)
	}
	return nil
}

// GetLatestByInputID retrieves the most recent snapshot record for an input.
func (r *snapshotRepo) GetLatestByInputID(ctx context.Context, inputID models.ULID) (*models.SnapshotRecord, error) {
	var record models.SnapshotRecord
	err := r.db.WithContext(ctx).Where("input_id = ?", inputID).Order("created_at DESC").First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting latest snapshot record: %w", err)
	}
	return &record, nil
}
