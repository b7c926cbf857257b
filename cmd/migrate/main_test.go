package main

import (
	"path/filepath"
	"testing"

	"dilli-gateway/internal/config"
	"dilli-gateway/internal/database"
	"dilli-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrateCommandImportsSQLite(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "legacy.db")
	dstPath := filepath.Join(dir, "target.db")

	src, err := database.Open(&config.Config{DBDriver: "sqlite", DBPath: srcPath}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(src))
	require.NoError(t, src.Create(&models.WAUser{WaIDHash: "hash-a", Locale: "he", Role: models.RoleUser, IsActive: true}).Error)
	require.NoError(t, database.Close(src))

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", dstPath)
	t.Setenv("LOG_LEVEL", "error")

	cmd := migrateCmd()
	cmd.SetArgs([]string{"--from-sqlite", srcPath})
	require.NoError(t, cmd.Execute())

	dst, err := database.Open(&config.Config{DBDriver: "sqlite", DBPath: dstPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(dst) })

	var n int64
	require.NoError(t, dst.Model(&models.WAUser{}).Where("wa_id_hash = ?", "hash-a").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestMigrateCommandRejectsArgs(t *testing.T) {
	cmd := migrateCmd()
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
