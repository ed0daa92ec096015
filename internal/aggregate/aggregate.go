// Package aggregate derives dashboard statistics from a snapshot of stored
// sightings. Snapshots are in ascending entry_id order and every function
// here is pure.
package aggregate

import (
	"cmp"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tphakala/wildlife-go/internal/datastore"
)

// ProximityPoint is one valid detection on the distance-over-time chart
type ProximityPoint struct {
	EntryID    int64     `json:"entry_id"`
	Timestamp  time.Time `json:"x"`
	DistanceCM float64   `json:"y"`
}

// DashboardAggregate is recomputed on demand and never persisted
type DashboardAggregate struct {
	TotalRecords           int              `json:"total_records"`
	TotalDetections        int              `json:"total_detections"`
	ValidDetections        int              `json:"valid_detections"`
	FalsePositiveCount     int              `json:"false_positive_count"`
	SpeciesCounts          map[string]int   `json:"species_counts"`
	TimeDistribution       map[string]int   `json:"time_distribution"`
	AverageDistanceOfValid float64          `json:"average_distance_of_valid"`
	ProximitySeries        []ProximityPoint `json:"proximity_series"`
	LastEntryID            int64            `json:"last_entry_id"`

	// timeLabels fixes the chart order of TimeDistribution
	timeLabels []string
}

// Aggregate scans records once. labels are the bucketing policy's labels;
// they seed TimeDistribution with zeros and fix its chart order.
func Aggregate(records []datastore.Sighting, labels []string) DashboardAggregate {
	agg := DashboardAggregate{
		TotalRecords:     len(records),
		SpeciesCounts:    make(map[string]int),
		TimeDistribution: make(map[string]int, len(labels)),
		ProximitySeries:  []ProximityPoint{},
		timeLabels:       slices.Clone(labels),
	}
	for _, l := range labels {
		agg.TimeDistribution[l] = 0
	}

	var distances []float64
	for i := range records {
		r := &records[i]
		agg.LastEntryID = max(agg.LastEntryID, r.EntryID)
		if r.Motion == 1 {
			agg.TotalDetections++
		}
		if !r.IsValidDetection {
			continue
		}
		agg.ValidDetections++
		agg.SpeciesCounts[r.SpeciesName]++
		if _, known := agg.TimeDistribution[r.TimeOfDay]; !known {
			agg.timeLabels = append(agg.timeLabels, r.TimeOfDay)
		}
		agg.TimeDistribution[r.TimeOfDay]++

		if r.DistanceCM > 0 {
			distances = append(distances, r.DistanceCM)
			agg.ProximitySeries = append(agg.ProximitySeries, ProximityPoint{
				EntryID:    r.EntryID,
				Timestamp:  pointTime(r),
				DistanceCM: r.DistanceCM,
			})
		}
	}
	// derived from the motion/valid split so keep-alives never count
	agg.FalsePositiveCount = agg.TotalDetections - agg.ValidDetections

	if len(distances) > 0 {
		agg.AverageDistanceOfValid = stat.Mean(distances, nil)
	}
	return agg
}

// pointTime places records without a feed timestamp at their ingest time
func pointTime(r *datastore.Sighting) time.Time {
	if r.Timestamp != nil {
		return *r.Timestamp
	}
	return r.IngestedAt
}

// AnimalTypes is the number of distinct species among valid detections
func (a DashboardAggregate) AnimalTypes() int {
	return len(a.SpeciesCounts)
}

// Series is a categorical chart as parallel label and value arrays
type Series struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// Stats is the scalar summary of the dashboard
type Stats struct {
	TotalRecords    int     `json:"total_records"`
	TotalDetections int     `json:"total_detections"`
	ValidDetections int     `json:"valid_detections"`
	FalsePositives  int     `json:"false_positives"`
	AnimalTypes     int     `json:"animal_types"`
	AverageDistance float64 `json:"average_distance"`
	LastEntryID     int64   `json:"last_entry_id"`
}

// Charts holds the chart data of the dashboard
type Charts struct {
	Species   Series           `json:"species"`
	TimeOfDay Series           `json:"time_of_day"`
	Proximity []ProximityPoint `json:"proximity"`
}

// Dashboard is the presentation contract: stats plus charts
type Dashboard struct {
	Stats  Stats  `json:"stats"`
	Charts Charts `json:"charts"`
}

// Stats returns the scalar summary, average rounded to two decimals
func (a DashboardAggregate) Stats() Stats {
	return Stats{
		TotalRecords:    a.TotalRecords,
		TotalDetections: a.TotalDetections,
		ValidDetections: a.ValidDetections,
		FalsePositives:  a.FalsePositiveCount,
		AnimalTypes:     a.AnimalTypes(),
		AverageDistance: round2(a.AverageDistanceOfValid),
		LastEntryID:     a.LastEntryID,
	}
}

// Dashboard renders the aggregate. Species are ordered by count descending
// then name; time buckets follow the policy's label order.
func (a DashboardAggregate) Dashboard() Dashboard {
	return Dashboard{
		Stats: a.Stats(),
		Charts: Charts{
			Species:   a.speciesSeries(),
			TimeOfDay: a.timeSeries(),
			Proximity: a.ProximitySeries,
		},
	}
}

func (a DashboardAggregate) speciesSeries() Series {
	names := make([]string, 0, len(a.SpeciesCounts))
	for name := range a.SpeciesCounts {
		names = append(names, name)
	}
	slices.SortFunc(names, func(x, y string) int {
		if c := cmp.Compare(a.SpeciesCounts[y], a.SpeciesCounts[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	s := Series{Labels: names, Data: make([]int, 0, len(names))}
	for _, n := range names {
		s.Data = append(s.Data, a.SpeciesCounts[n])
	}
	return s
}

func (a DashboardAggregate) timeSeries() Series {
	s := Series{Labels: make([]string, 0, len(a.timeLabels)), Data: make([]int, 0, len(a.timeLabels))}
	for _, l := range a.timeLabels {
		s.Labels = append(s.Labels, l)
		s.Data = append(s.Data, a.TimeDistribution[l])
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
