package aggregate

import (
	"time"

	"github.com/tphakala/wildlife-go/internal/datastore"
)

// TimelineRow is one record as the data table shows it
type TimelineRow struct {
	EntryID          int64      `json:"entry_id"`
	Timestamp        *time.Time `json:"timestamp"`
	Motion           int        `json:"motion"`
	DistanceCM       float64    `json:"distance"`
	LightLevel       int        `json:"light_level"`
	IsFalsePositive  bool       `json:"false_positive"`
	SpeciesID        int        `json:"species_id"`
	AnimalType       string     `json:"animal_type"`
	TimeOfDay        string     `json:"time_of_day"`
	IsValidDetection bool       `json:"is_valid_detection"`
}

// Timeline converts records to table rows, keeping their order. Records
// without a feed timestamp carry a null timestamp.
func Timeline(records []datastore.Sighting) []TimelineRow {
	rows := make([]TimelineRow, 0, len(records))
	for i := range records {
		r := &records[i]
		row := TimelineRow{
			EntryID:          r.EntryID,
			Motion:           r.Motion,
			DistanceCM:       r.DistanceCM,
			LightLevel:       r.LightLevel,
			IsFalsePositive:  r.IsFalsePositive,
			SpeciesID:        r.SpeciesID,
			AnimalType:       r.SpeciesName,
			TimeOfDay:        r.TimeOfDay,
			IsValidDetection: r.IsValidDetection,
		}
		if r.Timestamp != nil {
			ts := *r.Timestamp
			row.Timestamp = &ts
		}
		rows = append(rows, row)
	}
	return rows
}
