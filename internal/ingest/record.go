package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
	"github.com/tphakala/wildlife-go/internal/thingspeak"
)

// ErrMalformedRecord marks a remote record whose fields cannot be coerced
var ErrMalformedRecord = errors.NewStd("malformed remote record")

// createdAtLayout is the store's timestamp format, always UTC
const createdAtLayout = time.RFC3339

// Fields are the typed slots of one remote record before enrichment
type Fields struct {
	EntryID       int64
	Timestamp     time.Time
	HasTimestamp  bool
	Motion        int
	DistanceCM    float64
	LightLevel    int
	FalsePositive bool
	SpeciesID     int
}

// ParseRecord coerces a feed record. Missing, null and empty fields read as
// 0; anything else that is not numeric, or is out of range, fails with
// ErrMalformedRecord. A created_at that does not parse leaves HasTimestamp false.
func ParseRecord(rec *thingspeak.FeedRecord) (Fields, error) {
	f := Fields{EntryID: rec.EntryID}
	if rec.DecodeErr != nil {
		return f, malformed(rec.EntryID, "record", rec.DecodeErr)
	}
	if rec.EntryID <= 0 {
		return f, malformed(rec.EntryID, "entry_id", fmt.Errorf("entry_id %d is not positive", rec.EntryID))
	}

	if ts := strings.TrimSpace(rec.CreatedAt); ts != "" {
		if t, err := time.Parse(createdAtLayout, ts); err == nil {
			f.Timestamp = t.UTC()
			f.HasTimestamp = true
		} else {
			getLogger().Debug("ignoring unparseable created_at",
				logger.Int64("entry_id", rec.EntryID),
				logger.String("created_at", ts))
		}
	}

	var err error
	if f.Motion, err = rec.Field1.Int(); err != nil {
		return f, malformed(rec.EntryID, "field1", err)
	}
	if f.Motion != 0 && f.Motion != 1 {
		return f, malformed(rec.EntryID, "field1", fmt.Errorf("motion %d is not 0 or 1", f.Motion))
	}
	if f.DistanceCM, err = rec.Field2.Float(); err != nil {
		return f, malformed(rec.EntryID, "field2", err)
	}
	if f.DistanceCM < 0 {
		return f, malformed(rec.EntryID, "field2", fmt.Errorf("distance %g is negative", f.DistanceCM))
	}
	if f.LightLevel, err = rec.Field3.Int(); err != nil {
		return f, malformed(rec.EntryID, "field3", err)
	}
	if f.LightLevel < 0 || f.LightLevel > conf.MaxLight {
		return f, malformed(rec.EntryID, "field3", fmt.Errorf("light %d outside 0..%d", f.LightLevel, conf.MaxLight))
	}
	fp, err := rec.Field4.Int()
	if err != nil {
		return f, malformed(rec.EntryID, "field4", err)
	}
	f.FalsePositive = fp != 0
	if f.SpeciesID, err = rec.Field5.Int(); err != nil {
		return f, malformed(rec.EntryID, "field5", err)
	}
	if f.SpeciesID < 0 {
		return f, malformed(rec.EntryID, "field5", fmt.Errorf("species id %d is negative", f.SpeciesID))
	}
	return f, nil
}

func malformed(entryID int64, field string, cause error) error {
	return errors.New(fmt.Errorf("%w: %s: %w", ErrMalformedRecord, field, cause)).
		Component(componentName).
		Category(errors.CategoryIngest).
		Priority(errors.PriorityLow).
		Context("entry_id", entryID).
		Context("field", field).
		Build()
}
