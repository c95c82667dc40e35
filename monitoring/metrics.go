package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for a pipeline run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	PagesTotal      *prometheus.CounterVec
	CardsTotal      *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	RowsUpserted    prometheus.Counter
	StageRunsTotal  *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	LastSuccessUnix *prometheus.GaugeVec
}

// NewMetrics creates the metric set on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krisha_pages_total",
			Help: "Listing pages visited by the collector",
		}, []string{"result"}), // fetched, skipped
		CardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krisha_cards_total",
			Help: "Listing cards seen by the collector",
		}, []string{"result"}), // collected, failed
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krisha_records_total",
			Help: "Records handled by the normalizer",
		}, []string{"result"}), // normalized, duplicate, no_url
		RowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krisha_rows_upserted_total",
			Help: "Rows inserted or updated in the store",
		}),
		StageRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krisha_stage_runs_total",
			Help: "Pipeline stage executions",
		}, []string{"stage", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "krisha_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		LastSuccessUnix: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "krisha_stage_last_success_timestamp_seconds",
			Help: "Unix time of the last successful stage run",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		m.PagesTotal, m.CardsTotal, m.RecordsTotal, m.RowsUpserted,
		m.StageRunsTotal, m.StageDuration, m.LastSuccessUnix,
	)
	return m
}

func (m *Metrics) IncPages(result string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCards(result string) {
	if m == nil {
		return
	}
	m.CardsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) AddRecords(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) AddUpserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsUpserted.Add(float64(n))
}

// ObserveStage records one stage execution with its outcome.
func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		m.LastSuccessUnix.WithLabelValues(stage).SetToCurrentTime()
	}
	m.StageRunsTotal.WithLabelValues(stage, status).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
