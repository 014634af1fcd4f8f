package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}
