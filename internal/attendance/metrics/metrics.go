package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in outcomes used as the "outcome" label.
const (
	OutcomeRecorded   = "recorded"
	OutcomeDuplicate  = "duplicate"
	OutcomeUnknownTag = "unknown_tag"
	OutcomeInactive   = "inactive"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
)

// Metrics contains Prometheus metrics for attendance operations.
type Metrics struct {
	CheckIns            *prometheus.CounterVec
	CheckInDuration     prometheus.Histogram
	DuplicateCacheHits  prometheus.Counter
	UsersRegistered     prometheus.Counter
	ReportDuration      *prometheus.HistogramVec
	LegacyRowsProcessed *prometheus.CounterVec
}

// New creates and registers the attendance metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_checkins_total",
			Help: "Tag scans by outcome",
		}, []string{"outcome"}),
		CheckInDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_checkin_duration_seconds",
			Help:    "Time to process a tag scan end to end",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		DuplicateCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_duplicate_cache_hits_total",
			Help: "Duplicate scans rejected by the cache before touching the ledger",
		}),
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_users_registered_total",
			Help: "Users enrolled through the registration endpoint",
		}),
		ReportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_report_duration_seconds",
			Help:    "Time to build attendance reports",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		LegacyRowsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_legacy_rows_total",
			Help: "Legacy rows visited by migration sweeps by result",
		}, []string{"result"}),
	}
}

// IncrementCheckIn counts a scan with its outcome.
func (m *Metrics) IncrementCheckIn(outcome string) {
	m.CheckIns.WithLabelValues(outcome).Inc()
}

// ObserveCheckInDuration records how long a scan took.
func (m *Metrics) ObserveCheckInDuration(seconds float64) {
	m.CheckInDuration.Observe(seconds)
}

func (m *Metrics) IncrementDuplicateCacheHit() {
	m.DuplicateCacheHits.Inc()
}

func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

// ObserveReportDuration records report latency; report is "daily" or "range".
func (m *Metrics) ObserveReportDuration(report string, seconds float64) {
	m.ReportDuration.WithLabelValues(report).Observe(seconds)
}

// AddLegacyRows adds a migration sweep's tallies.
func (m *Metrics) AddLegacyRows(migrated, failed, skipped int) {
	m.LegacyRowsProcessed.WithLabelValues("migrated").Add(float64(migrated))
	m.LegacyRowsProcessed.WithLabelValues("failed").Add(float64(failed))
	m.LegacyRowsProcessed.WithLabelValues("skipped").Add(float64(skipped))
}
