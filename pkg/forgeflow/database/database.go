package database

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens a database handle for the given DSN and returns it.
// Postgres DSNs (postgres:// or postgresql://) use the postgres driver;
// anything else is treated as a sqlite file path.
//
// The handle is constructed once at composition time and passed to every
// component that needs it; there is deliberately no package-level instance.
func Connect(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

// Ping checks that the backing store is reachable.
func Ping(db *gorm.DB) error {
	return db.Exec("SELECT 1").Error
}
