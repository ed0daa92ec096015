package datastore

import "time"

// Sighting is one enriched remote feed record. EntryID is the remote feed's
// identifier and the only uniqueness guarantee; rows are never updated.
type Sighting struct {
	EntryID          int64      `gorm:"column:entry_id;primaryKey;autoIncrement:false" json:"entry_id"`
	Timestamp        *time.Time `gorm:"index" json:"timestamp"` // NULL when the feed gave no usable created_at
	Motion           int        `json:"motion"`
	DistanceCM       float64    `gorm:"column:distance_cm" json:"distance_cm"`
	LightLevel       int        `json:"light_level"`
	IsFalsePositive  bool       `json:"is_false_positive"`
	SpeciesID        int        `json:"species_id"`
	SpeciesName      string     `gorm:"size:64;index" json:"species_name"`
	TimeOfDay        string     `gorm:"size:16" json:"time_of_day"`
	IsValidDetection bool       `gorm:"index" json:"is_valid_detection"`
	IngestedAt       time.Time  `json:"ingested_at"`
}

// HasTimestamp reports whether the feed supplied a creation time
func (s *Sighting) HasTimestamp() bool { return s.Timestamp != nil }

// TableName pins the table name so SQLite and MySQL stores share a schema
func (Sighting) TableName() string { return "sightings" }

// Query selects a snapshot of sightings. The zero value returns every row in
// ascending entry_id order.
type Query struct {
	Limit        int   // 0 means no limit
	Descending   bool  // newest first
	AfterEntryID int64 // only rows with a greater entry_id
	ValidOnly    bool
}
