// Package testutil provides throwaway sqlite databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"jewelshop-backend/internal/config"
	"jewelshop-backend/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const JWTSecret = "test-secret-test-secret-test-secret"

// Config returns a sqlite configuration rooted in a temp dir.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		HTTPPort:         "0",
		DBDriver:         "sqlite",
		DatabaseDSN:      filepath.Join(t.TempDir(), "jewelshop.db"),
		JWTSecret:        JWTSecret,
		CORSOrigins:      "*",
		LedgerMaxRetries: 5,
		NumberPolicy:     "lenient",
		LoginRateLimit:   1000,
		LogLevel:         "warn",
		Timezone:         "UTC",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// NewDB opens a migrated sqlite database and installs it as database.DB.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(Config(t))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	database.DB = db
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
