package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// SQLiteStore is the default single-file store
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return errors.Newf("sqlite path is empty").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// sqliteDSN enables WAL so readers run alongside the single writer
func sqliteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// Open creates the database file and its directory when missing
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Output.SQLite.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component(componentName).
				Category(errors.CategoryFileIO).
				Context("operation", "create_db_dir").
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig())
	if err != nil {
		getLogger().Error("failed to open SQLite database",
			logger.String("path", path),
			logger.Error(err))
		return dbError(err, "open", errors.PriorityCritical, "db_type", "sqlite", "path", path)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

func (store *SQLiteStore) Close() error {
	return store.closeDB("sqlite")
}
