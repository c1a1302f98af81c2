package app

import (
	"fmt"
	"strings"

	"github.com/campuspointe/pointage/internal/store"
	"github.com/campuspointe/pointage/internal/store/postgres"
	"github.com/campuspointe/pointage/internal/store/sqlite"
)

func NewStore(dsn, migrationsDir string) (store.AttendanceStore, error) {
	dbType := store.DBTypeSQLite
	if strings.HasPrefix(dsn, "postgres") {
		dbType = store.DBTypePostgres
	}

	switch dbType {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(dsn, migrationsDir)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(dsn, migrationsDir)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
