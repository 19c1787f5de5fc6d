// coordinator/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "response"

var histogramBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}

// Outcome labels.
const (
	ResultGranted      = "granted"
	ResultInsufficient = "insufficient"
	ResultRejected     = "rejected"
	ResultAccepted     = "accepted"
	ResultOK           = "ok"
	ResultError        = "error"
	ResultDropped      = "dropped"
)

// Metrics holds the coordinator's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	deployments      prometheus.Counter
	completions      prometheus.Counter
	allocations      *prometheus.CounterVec
	occupancyUpdates *prometheus.CounterVec
	archiveWrites    *prometheus.CounterVec

	activeOperations  prometheus.Gauge
	availableTeams    prometheus.Gauge
	deployedTeams     prometheus.Gauge
	evacuationUsedPct prometheus.Gauge
	resourceAvailable *prometheus.GaugeVec

	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them, with the Go and process collectors,
// on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deployments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "operations", Name: "deployed_total",
			Help: "Number of operations deployed",
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "operations", Name: "completed_total",
			Help: "Number of operations completed",
		}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "resources", Name: "allocation_requests_total",
			Help: "Resource allocation requests by outcome",
		}, []string{"result"}),
		occupancyUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "centers", Name: "occupancy_updates_total",
			Help: "Evacuation center occupancy updates by outcome",
		}, []string{"result"}),
		archiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "archive", Name: "writes_total",
			Help: "Completed operation archive writes by outcome",
		}, []string{"result"}),
		activeOperations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "operations", Name: "active",
			Help: "Operations currently active",
		}),
		availableTeams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "teams", Name: "available",
			Help: "Teams currently available",
		}),
		deployedTeams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "teams", Name: "deployed",
			Help: "Teams currently deployed",
		}),
		evacuationUsedPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "centers", Name: "capacity_used_percent",
			Help: "Evacuation capacity in use across all centers",
		}),
		resourceAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "resources", Name: "available_quantity",
			Help: "Unallocated quantity per resource type",
		}, []string{"type"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "http_requests_total",
			Help: "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "http_request_duration_seconds",
			Help:    "Latency distribution of HTTP handlers",
			Buckets: histogramBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deployments, m.completions, m.allocations, m.occupancyUpdates, m.archiveWrites,
		m.activeOperations, m.availableTeams, m.deployedTeams, m.evacuationUsedPct, m.resourceAvailable,
		m.requestTotal, m.requestLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) OperationDeployed() {
	if m == nil {
		return
	}
	m.deployments.Inc()
}

func (m *Metrics) OperationCompleted() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *Metrics) Allocation(result string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
}

func (m *Metrics) OccupancyUpdate(result string) {
	if m == nil {
		return
	}
	m.occupancyUpdates.WithLabelValues(result).Inc()
}

func (m *Metrics) ArchiveWrite(result string) {
	if m == nil {
		return
	}
	m.archiveWrites.WithLabelValues(result).Inc()
}

// ObserveStatus copies a status report into the gauges.
func (m *Metrics) ObserveStatus(report models.StatusReport) {
	if m == nil {
		return
	}
	m.activeOperations.Set(float64(report.ActiveOperations))
	m.availableTeams.Set(float64(report.AvailableTeams))
	m.deployedTeams.Set(float64(report.DeployedTeams))
	m.evacuationUsedPct.Set(report.EvacuationCapacityUsedPercent)
	m.resourceAvailable.Reset()
	for resourceType, qty := range report.ResourcesByType {
		m.resourceAvailable.WithLabelValues(resourceType).Set(float64(qty))
	}
}

// ObserveHTTP records one handled request. route is the mux path template.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}
