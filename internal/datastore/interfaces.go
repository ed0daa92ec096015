// interfaces.go: sighting store interface and the shared GORM implementation
package datastore

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// ErrNotOpen is returned by every operation before Open succeeds
var ErrNotOpen = errors.NewStd("database connection is not initialized")

// Interface abstracts the sighting store. Writers are serialised per store;
// readers may run concurrently and never observe a partial batch.
type Interface interface {
	Open() error
	Close() error
	MaxEntryID(ctx context.Context) (int64, error)
	// InsertSighting reports false without error when the entry_id already exists
	InsertSighting(ctx context.Context, s *Sighting) (bool, error)
	// InsertSightings inserts a batch in one transaction and returns the rows
	// that were new, in input order
	InsertSightings(ctx context.Context, sightings []Sighting) ([]Sighting, error)
	Sightings(ctx context.Context, q Query) ([]Sighting, error)
	// LatestSightings returns the newest n rows in ascending entry_id order
	LatestSightings(ctx context.Context, n int) ([]Sighting, error)
	CountSightings(ctx context.Context) (int64, error)
	// SpeciesSeen lists distinct species names among valid detections
	SpeciesSeen(ctx context.Context) ([]string, error)
}

// DataStore implements Interface on top of a GORM connection
type DataStore struct {
	DB *gorm.DB
	mu sync.Mutex // one writer at a time
}

// New returns the configured store, SQLite taking precedence. The store is
// not opened.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

var onConflictDoNothing = clause.OnConflict{
	Columns:   []clause.Column{{Name: "entry_id"}},
	DoNothing: true,
}

func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	return ds.DB.WithContext(ctx), nil
}

// MaxEntryID returns the highest stored entry_id, 0 for an empty store
func (ds *DataStore) MaxEntryID(ctx context.Context) (int64, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return 0, err
	}
	var maxID int64
	if err := db.Model(&Sighting{}).Select("COALESCE(MAX(entry_id), 0)").Scan(&maxID).Error; err != nil {
		return 0, dbError(err, "max_entry_id", errors.PriorityMedium)
	}
	return maxID, nil
}

func (ds *DataStore) InsertSighting(ctx context.Context, s *Sighting) (bool, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}
	if s.IngestedAt.IsZero() {
		s.IngestedAt = time.Now().UTC()
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	res := db.Clauses(onConflictDoNothing).Create(s)
	if res.Error != nil {
		return false, dbError(res.Error, "insert_sighting", errors.PriorityHigh,
			"entry_id", s.EntryID)
	}
	if res.RowsAffected == 0 {
		getLogger().Debug("sighting already stored",
			logger.Int64("entry_id", s.EntryID))
		return false, nil
	}
	return true, nil
}

func (ds *DataStore) InsertSightings(ctx context.Context, sightings []Sighting) ([]Sighting, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	if len(sightings) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	inserted := make([]Sighting, 0, len(sightings))

	ds.mu.Lock()
	defer ds.mu.Unlock()

	start := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		for i := range sightings {
			s := sightings[i]
			if s.IngestedAt.IsZero() {
				s.IngestedAt = now
			}
			res := tx.Clauses(onConflictDoNothing).Create(&s)
			if res.Error != nil {
				return dbError(res.Error, "insert_sightings", errors.PriorityHigh,
					"entry_id", s.EntryID)
			}
			if res.RowsAffected > 0 {
				inserted = append(inserted, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	getLogger().Debug("sighting batch stored",
		logger.Int("batch", len(sightings)),
		logger.Int("inserted", len(inserted)),
		logger.Duration("duration", time.Since(start)))
	return inserted, nil
}

func (ds *DataStore) Sightings(ctx context.Context, q Query) ([]Sighting, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	tx := db.Model(&Sighting{})
	if q.AfterEntryID > 0 {
		tx = tx.Where("entry_id > ?", q.AfterEntryID)
	}
	if q.ValidOnly {
		tx = tx.Where("is_valid_detection = ?", true)
	}
	if q.Descending {
		tx = tx.Order("entry_id DESC")
	} else {
		tx = tx.Order("entry_id ASC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []Sighting
	if err := tx.Find(&out).Error; err != nil {
		return nil, dbError(err, "query_sightings", errors.PriorityMedium,
			"limit", q.Limit)
	}
	return out, nil
}

func (ds *DataStore) LatestSightings(ctx context.Context, n int) ([]Sighting, error) {
	out, err := ds.Sightings(ctx, Query{Limit: n, Descending: true})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (ds *DataStore) CountSightings(ctx context.Context) (int64, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&Sighting{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count_sightings", errors.PriorityLow)
	}
	return n, nil
}

func (ds *DataStore) SpeciesSeen(ctx context.Context) ([]string, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	err = db.Model(&Sighting{}).
		Where("is_valid_detection = ?", true).
		Distinct("species_name").
		Order("species_name ASC").
		Pluck("species_name", &names).Error
	if err != nil {
		return nil, dbError(err, "species_seen", errors.PriorityLow)
	}
	return names, nil
}

// closeDB closes the pool underneath a GORM handle
func (ds *DataStore) closeDB(dbType string) error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityLow, "db_type", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityLow, "db_type", dbType)
	}
	ds.DB = nil
	getLogger().Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}
