package models

import "time"

// CycleSummary is an in-memory-only snapshot of the most recently completed
// monitoring cycle, backing the ambient `/status` surface (SPEC_FULL §3, §6.1).
// It is replaced wholesale each cycle and never persisted.
type CycleSummary struct {
	CycleID       string
	StartedAt     time.Time
	CompletedAt   time.Time
	InputsProbed  int
	InputsFailed  int
	DurationMillis float64
}

// SnapshotRecord is the write-back target for the Snapshot Coordinator
// (§4.7), mirroring the "configuration store, write" contract of §6 as a
// concrete persisted row in the reference adapter.
type SnapshotRecord struct {
	BaseModel

	InputID      ULID   `gorm:"index;not null;type:varchar(26)" json:"input_id"`
	ArtifactPath string `gorm:"size:2048;not null" json:"artifact_path"`
	CapturedAt   Time   `json:"captured_at"`
}

// TableName returns the table name for SnapshotRecord.
func (SnapshotRecord) TableName() string {
	return "snapshot_records"
}
