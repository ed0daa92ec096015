package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// MySQLStore shares one sightings table across servers
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(s *conf.MySQLSettings) error {
	if s.Host == "" || s.Database == "" || s.Username == "" {
		return errors.Newf("mysql host, database and username are required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Context("host", s.Host).
			Context("database", s.Database).
			Build()
	}
	return nil
}

func mysqlDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

func (store *MySQLStore) Open() error {
	cfg := &store.Settings.Output.MySQL
	if err := validateMySQLConfig(cfg); err != nil {
		return err
	}

	dsn := mysqlDSN(cfg)
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		getLogger().Error("failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.String("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return dbError(err, "open", errors.PriorityCritical,
			"db_type", "mysql", "host", cfg.Host, "database", cfg.Database)
	}

	store.DB = db
	redacted := *cfg
	if redacted.Password != "" {
		redacted.Password = "[REDACTED]"
	}
	return performAutoMigration(db, store.Settings.Debug, "MySQL", mysqlDSN(&redacted))
}

func (store *MySQLStore) Close() error {
	return store.closeDB("mysql")
}
