package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"git.0xdad.com/tblyler/medreminder/reminder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePass(t *testing.T) {
	m := New()

	m.ObservePass(reminder.RunResult{
		Pass:        reminder.PassReminder,
		Matched:     3,
		LogsCreated: 2,
		Notified:    1,
		Errors: []reminder.ItemError{
			{Kind: apperr.KindRecipientNotConfigured, Entity: "schedule a"},
			{Kind: apperr.KindNotificationsDisabled, Entity: "schedule b"},
		},
	}, nil, time.Second)

	m.ObservePass(reminder.RunResult{Pass: reminder.PassMissed}, apperr.New(apperr.KindStoreUnavailable, "", errors.New("closed")), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passRuns.WithLabelValues("reminder", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passRuns.WithLabelValues("missed", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.passItems.WithLabelValues("reminder", "matched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.passItems.WithLabelValues("reminder", "logs_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passErrors.WithLabelValues("reminder", "RecipientNotConfigured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passErrors.WithLabelValues("missed", "StoreUnavailable")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.passDuration))
}

func TestObserveDeliveryAndReport(t *testing.T) {
	m := New()

	m.ObserveDelivery("medication_reminder", "delivered")
	m.ObserveDelivery("medication_reminder", "delivered")
	m.ObserveDelivery("missed_medication", "dry_run")
	m.ObserveReport("weekly", nil)
	m.ObserveReport("yearly", apperr.ErrInvalidReportType)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("medication_reminder", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("missed_medication", "dry_run")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("weekly", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("yearly", "error")))
}

func TestDebugMux(t *testing.T) {
	m := New()
	m.ObserveDelivery("medication_report", "delivered")

	server := httptest.NewServer(m.DebugMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200 OK", string(body))

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `medreminder_deliveries_total{kind="medication_report",outcome="delivered"} 1`)
}
