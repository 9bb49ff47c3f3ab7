package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackupCreatesRestorableSnapshot(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "attendance.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertUser(ctx, &models.User{
		UserID:     100,
		Name:       "Анна",
		Username:   "ann",
		LastActive: time.Now(),
	}))

	storage := filepath.Join(dir, "backups")
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:       true,
		StoragePath:   storage,
		RetentionDays: 7,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	entries, err := os.ReadDir(storage)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "backup_"))

	// Снимок — валидная база с теми же данными
	restored, err := NewDB(filepath.Join(storage, entries[0].Name()), &logger)
	require.NoError(t, err)
	defer restored.Close()

	user, err := restored.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Анна", user.Name)
	assert.Equal(t, "ann", user.Username)
}

func TestCleanupOldBackupsHonorsRetention(t *testing.T) {
	logger := zerolog.Nop()
	storage := t.TempDir()

	oldBackup := filepath.Join(storage, "backup_20240101_000000.db")
	freshBackup := filepath.Join(storage, "backup_fresh.db")
	require.NoError(t, os.WriteFile(oldBackup, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(freshBackup, []byte("fresh"), 0o644))

	stale := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldBackup, stale, stale))

	svc := NewBackupService("unused.db", config.BackupConfig{
		StoragePath:   storage,
		RetentionDays: 7,
	}, &logger)
	svc.CleanupOldBackups()

	_, err := os.Stat(oldBackup)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshBackup)
	assert.NoError(t, err)
}

func TestCleanupOldBackupsDisabledByZeroRetention(t *testing.T) {
	logger := zerolog.Nop()
	storage := t.TempDir()

	oldBackup := filepath.Join(storage, "backup_20240101_000000.db")
	require.NoError(t, os.WriteFile(oldBackup, []byte("old"), 0o644))
	stale := time.Now().AddDate(0, 0, -100)
	require.NoError(t, os.Chtimes(oldBackup, stale, stale))

	svc := NewBackupService("unused.db", config.BackupConfig{
		StoragePath: storage,
	}, &logger)
	svc.CleanupOldBackups()

	_, err := os.Stat(oldBackup)
	assert.NoError(t, err)
}
