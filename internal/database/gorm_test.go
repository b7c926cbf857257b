package database

import (
	"context"
	"path/filepath"
	"testing"

	"dilli-gateway/internal/config"
	"dilli-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBUser: "dilli", DBPassword: "pw", DBName: "dilli", DBPort: "5432", DBSSLMode: "require",
	}
	assert.Equal(t, "host=db user=dilli password=pw dbname=dilli port=5432 sslmode=require", PostgresDSN(cfg))
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestOpenMigratePingSQLite(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "dilli.db")}

	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	require.NoError(t, Ping(context.Background(), db))

	assert.True(t, db.Migrator().HasTable(&models.WAUser{}))
	assert.True(t, db.Migrator().HasTable(&models.ProcessedMessage{}))
	assert.True(t, db.Migrator().HasIndex(&models.WAUser{}, "WaIDHash"))
}
