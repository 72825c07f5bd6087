package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// New opens a SQLite database at path. In-memory databases are pinned to a
// single connection, otherwise every pooled connection would see its own
// empty database.
func New(ctx context.Context, path string) (*gorm.DB, error) {
	inMemory := path == MemoryPath || strings.Contains(path, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir failed: %w", err)
		}
	}

	dsn := path
	if !inMemory && !strings.Contains(path, "?") {
		// Pragmas in the DSN apply to every pooled connection.
		dsn = path + "?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sqlite sql db failed: %w", err)
	}

	if inMemory {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if inMemory {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys failed: %w", err)
		}
	}

	return db, nil
}
