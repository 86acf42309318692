package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// Connect opens the database described by url. Postgres URLs select the server driver,
// anything else is treated as a SQLite path.
func Connect(url string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(url)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return ConnectPostgres(trimmed)
	case strings.HasPrefix(lower, "sqlite://"):
		return ConnectSQLite(trimmed[len("sqlite://"):])
	default:
		return ConnectSQLite(trimmed)
	}
}

// Migrate creates or updates the grader schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
