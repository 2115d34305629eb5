package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/localnerve/casefile/internal/config"
	"github.com/localnerve/casefile/internal/database"
	"gorm.io/gorm"
)

// NewSQLite opens a migrated SQLite database in a temporary directory, closed when the test ends
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		DBType:            "sqlite",
		DBDatabase:        filepath.Join(t.TempDir(), "casefile.db"),
		DBConnectionLimit: 1,
		DBLogLevel:        "silent",
		SessionTTL:        time.Hour,
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close(db)
	})
	return db
}
