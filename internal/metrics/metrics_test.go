package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordOnIsolatedRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementSectionSave("saved")
	m.IncrementSectionSave("saved")
	m.IncrementSectionSave("no-change")
	m.IncrementStaleWriteRisk()
	m.ObserveQuote(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SectionSaves.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SectionSaves.WithLabelValues("no-change")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleWriteRisks))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QuoteDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncrementSectionSave("saved")
	m.IncrementRenewal("annual")
	m.ObserveResolve(time.Now())
	m.IncrementCacheLookup("hit")
}
