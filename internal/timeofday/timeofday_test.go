package timeofday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/conf"
)

func at(hour int) time.Time {
	return time.Date(2024, 3, 20, hour, 30, 0, 0, time.UTC)
}

func TestBucketHour(t *testing.T) {
	t.Parallel()

	want := map[int]string{
		0: Night, 4: Night,
		5: Morning, 11: Morning,
		12: Afternoon, 16: Afternoon,
		17: Evening, 20: Evening,
		21: Night, 23: Night,
	}
	for h, label := range want {
		assert.Equal(t, label, BucketHour(h), "hour %d", h)
	}
}

func TestHourPolicyUsesUTC(t *testing.T) {
	t.Parallel()

	// 10:30 at UTC+3 is 07:30 UTC
	ts := time.Date(2024, 3, 20, 10, 30, 0, 0, time.FixedZone("EEST", 3*3600))
	assert.Equal(t, Morning, HourPolicy{}.Bucket(ts, true, 0))
	assert.Equal(t, Afternoon, HourPolicy{}.Bucket(at(14), true, 4000))
}

func TestLightPolicy(t *testing.T) {
	t.Parallel()
	p := DefaultLightPolicy()

	tests := []struct {
		light int
		want  string
	}{
		{0, Night},
		{999, Night},
		{1000, DawnDusk},
		{3000, DawnDusk},
		{3001, Day},
		{conf.MaxLight, Day},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Bucket(time.Time{}, false, tt.light), "light %d", tt.light)
	}
}

func TestAutoPolicy(t *testing.T) {
	t.Parallel()
	p := AutoPolicy{Light: DefaultLightPolicy()}

	assert.Equal(t, Evening, p.Bucket(at(18), true, 500), "timestamp wins over light")
	assert.Equal(t, Night, p.Bucket(time.Time{}, false, 500), "light only without timestamp")
	assert.Equal(t, DawnDusk, p.Bucket(time.Time{}, false, 2000))

	labels := p.Labels()
	for _, l := range []string{Morning, Afternoon, Evening, Night, DawnDusk, Day} {
		assert.Contains(t, labels, l)
	}
}

func TestSunPolicy(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(&conf.TimeOfDaySettings{
		Policy: conf.PolicySun, NightBelow: 1000, DayAbove: 3000,
		Latitude: 51.5072, Longitude: -0.1276,
	})
	require.NoError(t, err)

	assert.Equal(t, Day, p.Bucket(at(12), true, 0))
	assert.Equal(t, Night, p.Bucket(at(1), true, 4000))
	assert.Equal(t, DawnDusk, p.Bucket(time.Time{}, false, 2000), "falls back to light")
}

func TestSunPolicyPolarFallsBackToLight(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(&conf.TimeOfDaySettings{
		Policy: conf.PolicySun, NightBelow: 1000, DayAbove: 3000,
		Latitude: 78.22, Longitude: 15.65, // Svalbard
	})
	require.NoError(t, err)

	// midnight sun: civil dusk never happens, the bucket must still be a known label
	got := p.Bucket(time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC), true, 3500)
	assert.Contains(t, p.Labels(), got)
}

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy  string
		want    string
		wantErr bool
	}{
		{"", conf.PolicyAuto, false},
		{conf.PolicyAuto, conf.PolicyAuto, false},
		{conf.PolicyHour, conf.PolicyHour, false},
		{conf.PolicyLight, conf.PolicyLight, false},
		{conf.PolicySun, conf.PolicySun, false},
		{"moon", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			t.Parallel()
			p, err := NewPolicy(&conf.TimeOfDaySettings{Policy: tt.policy, NightBelow: 1000, DayAbove: 3000})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestNewPolicyCarriesLightThresholds(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(&conf.TimeOfDaySettings{Policy: conf.PolicyLight, NightBelow: 100, DayAbove: 200})
	require.NoError(t, err)
	assert.Equal(t, Day, p.Bucket(time.Time{}, false, 500))
}
