package sos

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navis-app/navis-api/internal/metrics"
	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/store"
)

type recordingNotifier struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

var ana = Caller{ID: "u1", Name: "Ana"}

func newTestService(t *testing.T, opts ...Option) (*Service, store.Store, *clockwork.FakeClock) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "sos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(st, opts...), st, clock
}

func TestSetContact_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetContact(ctx, ana.ID, model.Contact{Name: " ", Phone: "11999990000"})
	assert.ErrorIs(t, err, ErrInvalidContact)

	c, err := svc.SetContact(ctx, ana.ID, model.Contact{Name: " Mãe ", Phone: "11999990000"})
	require.NoError(t, err)
	assert.Equal(t, "Mãe", c.Name)

	got, err := svc.Contact(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, *c, *got)
}

func TestTrigger_RequiresContactAndHold(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Trigger(ctx, ana, -23.55, -46.63, 3*time.Second)
	assert.ErrorIs(t, err, ErrNoContact)

	_, err = svc.SetContact(ctx, ana.ID, model.Contact{Name: "Mãe", Phone: "11999990000"})
	require.NoError(t, err)

	_, err = svc.Trigger(ctx, ana, -23.55, -46.63, 1999*time.Millisecond)
	assert.ErrorIs(t, err, ErrHoldTooShort)
}

func TestTrigger_NotifiesEveryChannel(t *testing.T) {
	hook := &recordingNotifier{name: "webhook"}
	stream := &recordingNotifier{name: "kafka"}
	m, _ := metrics.NewMetricsForTesting()
	svc, st, _ := newTestService(t, WithNotifiers(hook, stream), WithMetrics(m))
	ctx := context.Background()

	_, err := svc.SetContact(ctx, ana.ID, model.Contact{Name: "Mãe", Phone: "11999990000"})
	require.NoError(t, err)

	alert, err := svc.Trigger(ctx, ana, -23.5505, -46.6333, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.AlertSent, alert.State)
	assert.Equal(t,
		"SOS! Ana precisa de ajuda. Localização: -23.550500,-46.633300 https://www.openstreetmap.org/?mlat=-23.550500&mlon=-46.633300",
		alert.Message)
	assert.Empty(t, alert.Failures)

	require.Len(t, hook.events, 1)
	require.Len(t, stream.events, 1)
	assert.Equal(t, alert.ID, hook.events[0].AlertID)
	assert.Equal(t, "Mãe", stream.events[0].Contact.Name)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SOSAlerts.WithLabelValues("kafka", "success")), 0.001)

	stored, err := st.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertSent, stored.State)
}

func TestTrigger_RecordsNotifierFailure(t *testing.T) {
	hook := &recordingNotifier{name: "webhook", err: errors.New("status 500")}
	stream := &recordingNotifier{name: "kafka"}
	svc, st, _ := newTestService(t, WithNotifiers(hook, stream))
	ctx := context.Background()

	_, err := svc.SetContact(ctx, ana.ID, model.Contact{Name: "Mãe", Phone: "11999990000"})
	require.NoError(t, err)

	alert, err := svc.Trigger(ctx, ana, -23.55, -46.63, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"webhook: status 500"}, alert.Failures)
	assert.Len(t, stream.events, 1)

	stored, err := st.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertSent, stored.State)
	assert.Equal(t, []string{"webhook: status 500"}, stored.Failures)
}

func TestCancelAndRearm(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetContact(ctx, ana.ID, model.Contact{Name: "Mãe", Phone: "11999990000"})
	require.NoError(t, err)
	alert, err := svc.Trigger(ctx, ana, -23.55, -46.63, 2*time.Second)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, alert.ID, Caller{ID: "intruder"})
	assert.ErrorIs(t, err, ErrAlertNotFound)

	canceled, err := svc.Cancel(ctx, alert.ID, ana)
	require.NoError(t, err)
	assert.Equal(t, model.AlertCanceled, canceled.State)
	require.NotNil(t, canceled.CanceledAt)

	_, err = svc.Cancel(ctx, alert.ID, ana)
	assert.ErrorIs(t, err, ErrNotCancelable)

	clock.Advance(2 * time.Second)
	status, err := svc.Status(ctx, alert.ID, ana)
	require.NoError(t, err)
	assert.Equal(t, model.AlertCanceled, status.State)

	clock.Advance(time.Second)
	status, err = svc.Status(ctx, alert.ID, ana)
	require.NoError(t, err)
	assert.Equal(t, model.AlertReady, status.State)

	_, err = svc.Status(ctx, "missing", ana)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}
