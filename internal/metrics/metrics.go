package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the member lifecycle core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SectionSaves     *prometheus.CounterVec
	StaleWriteRisks  prometheus.Counter
	ChangeRecords    prometheus.Counter
	Renewals         *prometheus.CounterVec
	QuoteDuration    prometheus.Histogram
	ResolveDuration  prometheus.Histogram
	CatalogCacheHits *prometheus.CounterVec
}

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SectionSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhouse_section_saves_total",
			Help: "Section save attempts by outcome (saved, no-change, error)",
		}, []string{"outcome"}),
		StaleWriteRisks: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubhouse_stale_write_risks_total",
			Help: "Saves where the stored section changed after the edit started",
		}),
		ChangeRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubhouse_change_records_appended_total",
			Help: "Total number of audit entries appended",
		}),
		Renewals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhouse_renewals_total",
			Help: "Committed renewals by fee frequency",
		}, []string{"frequency"}),
		QuoteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clubhouse_fee_quote_duration_seconds",
			Help:    "Duration of fee quote aggregation",
			Buckets: durationBuckets,
		}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clubhouse_eligibility_resolve_duration_seconds",
			Help:    "Duration of eligibility resolution including catalog lookups",
			Buckets: durationBuckets,
		}),
		CatalogCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhouse_catalog_cache_lookups_total",
			Help: "Catalog cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

// IncrementSectionSave records a save attempt with its outcome.
func (m *Metrics) IncrementSectionSave(outcome string) {
	if m == nil {
		return
	}
	m.SectionSaves.WithLabelValues(outcome).Inc()
}

// IncrementStaleWriteRisk records a detected concurrent modification.
func (m *Metrics) IncrementStaleWriteRisk() {
	if m == nil {
		return
	}
	m.StaleWriteRisks.Inc()
}

// IncrementChangeRecords records an appended audit entry.
func (m *Metrics) IncrementChangeRecords() {
	if m == nil {
		return
	}
	m.ChangeRecords.Inc()
}

// IncrementRenewal records a committed renewal.
func (m *Metrics) IncrementRenewal(frequency string) {
	if m == nil {
		return
	}
	m.Renewals.WithLabelValues(frequency).Inc()
}

// ObserveQuote records the duration of a quote.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveQuote(start time.Time) {
	if m == nil {
		return
	}
	m.QuoteDuration.Observe(time.Since(start).Seconds())
}

// ObserveResolve records the duration of an eligibility resolution.
func (m *Metrics) ObserveResolve(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

// IncrementCacheLookup records a catalog cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CatalogCacheHits.WithLabelValues(result).Inc()
}
