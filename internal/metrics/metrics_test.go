package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/save"
)

func TestMetrics_Engine(t *testing.T) {
	m := New()

	m.ObserveTick(2 * time.Millisecond)
	m.ObserveMessage(model.FamilyOverallProgress, true)
	m.ObserveMessage(model.FamilyOverallProgress, true)
	m.ObserveMessage(model.FamilyComponentProgress, false)
	m.ObserveTeardown("spoofed_message")
	m.ObserveHandoff()

	assert.Equal(t, 2.0, promtest.ToFloat64(m.messages.WithLabelValues(model.FamilyOverallProgress.String(), "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.messages.WithLabelValues(model.FamilyComponentProgress.String(), "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.teardowns.WithLabelValues("spoofed_message")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.handoffs))
	assert.Equal(t, 1, promtest.CollectAndCount(m.tickDuration))
}

func TestMetrics_SaveOnlineGauge(t *testing.T) {
	m := New()
	assert.Equal(t, 1.0, promtest.ToFloat64(m.online))

	m.ObserveWrite(save.LocalOnly, time.Millisecond)
	assert.Equal(t, 0.0, promtest.ToFloat64(m.online))

	m.ObserveWrite(save.BothOK, time.Millisecond)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.online))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.writes.WithLabelValues("local_only")))

	m.ObserveBackup(true)
	m.ObserveBackup(false)
	m.ObserveCritical()
	assert.Equal(t, 1.0, promtest.ToFloat64(m.backups.WithLabelValues("error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.criticals))
}

func TestMetrics_Recovery(t *testing.T) {
	m := New()

	m.ObserveRecovery("local", integrity.Result{PerfectlyValidInput: true})
	m.ObserveRecovery("remote", integrity.Result{
		Sections: map[integrity.Section]integrity.SectionMetrics{
			integrity.SectionOverallProgress: {CorruptionDetected: true, LessonsLostToCorruption: 5},
			integrity.SectionSettings:        {StrictValid: true},
		},
	})
	m.ObserveRecovery("remote", integrity.Result{Critical: integrity.CriticalFlags{IdentityMismatch: true}})

	assert.Equal(t, 1.0, promtest.ToFloat64(m.recoveries.WithLabelValues("local", "clean")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.recoveries.WithLabelValues("remote", "repaired")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.recoveries.WithLabelValues("remote", "critical")))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.lessonsLost))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.sectionsRepaired.WithLabelValues("overallProgress")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHandoff()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mera_engine_snapshot_handoffs_total 1")
	assert.Contains(t, string(body), "mera_save_online 1")
}
