package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/errors"
)

func TestParseRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      [6]string
		id      int64
		wantErr string
		want    Fields
	}{
		{
			name: "full record",
			id:   9,
			in:   [6]string{"2024-05-01T21:00:00Z", "1", "123.5", "3200", "0", "4"},
			want: Fields{
				EntryID: 9, Timestamp: time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC), HasTimestamp: true,
				Motion: 1, DistanceCM: 123.5, LightLevel: 3200, SpeciesID: 4,
			},
		},
		{
			name: "absent and empty fields read as zero",
			id:   1,
			in:   [6]string{"", "1", "-", "", "-", ""},
			want: Fields{EntryID: 1, Motion: 1},
		},
		{
			name: "integral decimals accepted",
			id:   2,
			in:   [6]string{"", "1.0", "10", "2000.0", "1", "3.0"},
			want: Fields{EntryID: 2, Motion: 1, DistanceCM: 10, LightLevel: 2000, FalsePositive: true, SpeciesID: 3},
		},
		{name: "non numeric distance", id: 3, in: [6]string{"", "1", "far"}, wantErr: "field2"},
		{name: "fractional species", id: 4, in: [6]string{"", "1", "10", "10", "0", "2.5"}, wantErr: "field5"},
		{name: "motion out of range", id: 5, in: [6]string{"", "2"}, wantErr: "field1"},
		{name: "negative distance", id: 6, in: [6]string{"", "1", "-4"}, wantErr: "field2"},
		{name: "light over full scale", id: 7, in: [6]string{"", "1", "10", "5000"}, wantErr: "field3"},
		{name: "bad flag", id: 8, in: [6]string{"", "1", "10", "10", "maybe"}, wantErr: "field4"},
		{name: "zero entry id", id: 0, in: [6]string{"", "1"}, wantErr: "entry_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := tt.in
			rec := record(tt.id, in[0], in[1], in[2], in[3], in[4], in[5])
			got, err := ParseRecord(&rec)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrMalformedRecord)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCategory(err, errors.CategoryIngest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRecordUnparseableTimestamp(t *testing.T) {
	t.Parallel()
	rec := record(1, "yesterday", "1", "10", "10", "0", "0")
	got, err := ParseRecord(&rec)
	require.NoError(t, err)
	assert.False(t, got.HasTimestamp)
	assert.True(t, got.Timestamp.IsZero())
}

func TestParseRecordConvertsToUTC(t *testing.T) {
	t.Parallel()
	rec := record(1, "2024-05-01T23:30:00+02:00", "1", "10", "10", "0", "0")
	got, err := ParseRecord(&rec)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Timestamp.Location())
	assert.Equal(t, 21, got.Timestamp.Hour())
}

func TestParseRecordRejectsUndecodedEntry(t *testing.T) {
	t.Parallel()
	rec := detection(7, "1")
	rec.DecodeErr = assert.AnError
	_, err := ParseRecord(&rec)
	require.ErrorIs(t, err, ErrMalformedRecord)
	require.ErrorIs(t, err, assert.AnError)
}
