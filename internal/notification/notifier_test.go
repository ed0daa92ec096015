package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	werrors "github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/observability/metrics"
)

type sent struct {
	message string
	title   string
}

type fakeSender struct {
	mu   sync.Mutex
	got  []sent
	errs []error
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	title, _ := params.Title()
	f.got = append(f.got, sent{message: message, title: title})
	return f.errs
}

func sighting(species string, valid bool) datastore.Sighting {
	return datastore.Sighting{
		EntryID: 9, Motion: 1, DistanceCM: 87.25, LightLevel: 3600,
		SpeciesName: species, TimeOfDay: "Night", IsValidDetection: valid,
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()
	s := sighting("Lynx", true)
	assert.Equal(t, "Lynx seen at 87.25 cm (Night)", Message(&s))
	s.DistanceCM = 120
	assert.Equal(t, "Lynx seen at 120 cm (Night)", Message(&s))
}

func TestDeliverWatchedSpecies(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	n := NewNotifierWithSender(fs, []string{"lynx", " Wolf ", ""}, nil)

	require.NoError(t, n.Deliver(context.Background(), sighting("Lynx", true)))
	require.NoError(t, n.Deliver(context.Background(), sighting("Wolf", true)))
	require.Len(t, fs.got, 2)
	assert.Equal(t, "Lynx seen at 87.25 cm (Night)", fs.got[0].message)
	assert.Equal(t, title, fs.got[0].title)
	assert.False(t, n.Watches(""))
}

func TestDeliverIgnoresOthers(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	n := NewNotifierWithSender(fs, []string{"Lynx"}, nil)

	require.NoError(t, n.Deliver(context.Background(), sighting("Fox", true)))
	require.NoError(t, n.Deliver(context.Background(), sighting("Lynx", false)), "invalid sightings never alert")
	assert.Empty(t, fs.got)
}

func TestDeliverFailure(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	fs := &fakeSender{errs: []error{nil, errors.New("failed to send to https://hooks.example.com/services/T000/B000/XXXX")}}
	n := NewNotifierWithSender(fs, []string{"Lynx"}, m)

	err = n.Deliver(context.Background(), sighting("Lynx", true))
	require.Error(t, err)
	assert.True(t, werrors.IsCategory(err, werrors.CategoryNotification))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues(metrics.StatusError)), 0)

	fs.errs = nil
	require.NoError(t, n.Deliver(context.Background(), sighting("Lynx", true)))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues(metrics.StatusSuccess)), 0)
}

func TestNewNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := NewNotifier(&conf.NotificationSettings{Enabled: true}, nil)
	require.Error(t, err)
	assert.True(t, werrors.IsCategory(err, werrors.CategoryConfiguration))

	_, err = NewNotifier(&conf.NotificationSettings{Enabled: true, URLs: []string{"nosuchservice://token@host"}}, nil)
	require.Error(t, err)
}
