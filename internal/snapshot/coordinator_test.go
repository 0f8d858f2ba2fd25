package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvqos/tvqos/internal/config"
	"github.com/tvqos/tvqos/internal/models"
	"github.com/tvqos/tvqos/internal/storage"
)

type fakeTracker struct {
	mu    sync.Mutex
	times map[string]time.Time
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{times: make(map[string]time.Time)}
}

func (f *fakeTracker) LastSnapshotInstant(inputID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.times[inputID]
	return t, ok
}

func (f *fakeTracker) RecordSnapshotInstant(inputID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times[inputID] = at
}

type fakeInputRepo struct {
	mu      sync.Mutex
	updates int
}

func (f *fakeInputRepo) ListEnabled(ctx context.Context) ([]*models.InputSource, error) {
	return nil, nil
}

func (f *fakeInputRepo) UpdateSnapshot(ctx context.Context, id models.ULID, path string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func TestCoordinator_DisabledSkipsEntirely(t *testing.T) {
	tracker := newFakeTracker()
	repo := &fakeInputRepo{}
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	coord := NewCoordinator(tracker, repo, sandbox, config.SnapshotConfig{Enabled: false})

	input := &models.InputSource{}
	coord.Maybe(context.Background(), input)

	assert.Equal(t, 0, repo.updates)
}

func TestCoordinator_ThrottleSkipsWithinInterval(t *testing.T) {
	tracker := newFakeTracker()
	inputID := models.NewULID()
	tracker.RecordSnapshotInstant(inputID.String(), time.Now())

	repo := &fakeInputRepo{}
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	coord := NewCoordinator(tracker, repo, sandbox, config.SnapshotConfig{
		Enabled:  true,
		Interval: 60 * time.Second,
	})

	input := &models.InputSource{}
	input.ID = inputID
	coord.Maybe(context.Background(), input)

	assert.Equal(t, 0, repo.updates)
}

func TestCoordinator_MissingBinarySkipsSafely(t *testing.T) {
	tracker := newFakeTracker()
	repo := &fakeInputRepo{}
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	coord := NewCoordinator(tracker, repo, sandbox, config.SnapshotConfig{
		Enabled:      true,
		Interval:     60 * time.Second,
		BinaryPath:   "/definitely/not/a/real/binary",
		FrameDuration: time.Second,
	})

	input := &models.InputSource{}
	input.ID = models.NewULID()
	coord.Maybe(context.Background(), input)

	assert.Equal(t, 0, repo.updates)
	if _, ok := tracker.LastSnapshotInstant(input.ID.String()); ok {
		t.Fatal("snapshot instant should not be recorded when the subprocess never ran")
	}
}
