package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gopherblog/internal/platform/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
