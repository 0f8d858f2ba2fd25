package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db
}

func TestAllMigrations_ReturnsExpectedCount(t *testing.T) {
	migrations := AllMigrations()
	assert.Len(t, migrations, 1)
}

func TestAllMigrations_VersionsAreUnique(t *testing.T) {
	migrations := AllMigrations()
	versions := make(map[string]bool)

	for _, m := range migrations {
		assert.False(t, versions[m.Version], "duplicate version: %s", m.Version)
		versions[m.Version] = true
	}
}

func TestMigrator_Up_CreatesTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("input_sources"))
	assert.True(t, db.Migrator().HasTable("snapshot_records"))
}

func TestMigrator_Up_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Up(ctx))
}

func TestMigrator_Status(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 1)
	assert.False(t, statuses[0].Applied)

	require.NoError(t, migrator.Up(ctx))

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Applied)
	assert.NotNil(t, statuses[0].AppliedAt)
}

func TestMigrator_Down_DropsTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	require.NoError(t, migrator.Up(ctx))
	assert.True(t, db.Migrator().HasTable("input_sources"))

	require.NoError(t, migrator.Down(ctx))
	assert.False(t, db.Migrator().HasTable("input_sources"))
	assert.False(t, db.Migrator().HasTable("snapshot_records"))
}

func TestMigrator_Pending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, migrator.Up(ctx))

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}
