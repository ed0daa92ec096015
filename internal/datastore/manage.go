package datastore

import (
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

func createGormLogger() gormlogger.Interface {
	return logger.NewGormLoggerAdapter(getLogger(), slowQueryThreshold)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: createGormLogger(),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// performAutoMigration creates or extends the sightings table. Existing rows
// are never rewritten.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	start := time.Now()
	existed := db.Migrator().HasTable(&Sighting{})

	if err := db.AutoMigrate(&Sighting{}); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}

	action := "created"
	if existed {
		action = "verified"
	}
	log := getLogger()
	log.Info("sightings table ready",
		logger.String("db_type", dbType),
		logger.String("action", action),
		logger.Duration("duration", time.Since(start)))
	if debug {
		log.Debug("database connection",
			logger.String("db_type", dbType),
			logger.String("connection", logger.RedactSensitiveData(connectionInfo)))
	}
	return nil
}
