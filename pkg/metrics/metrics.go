package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "linkserver"

	metricLabelHandler = "handler"
	metricLabelStatus  = "status"
	metricLabelSource  = "source"
	metricLabelRemote  = "remote"
	metricLabelMount   = "mount"
	metricLabelOutcome = "outcome"
	metricLabelResult  = "result"
)

// Metrics is the structure that holds all prometheus metrics
var (
	// ServiceRequestCounter count the number of requests for each service function
	ServiceRequestCounter = newCounterVec(
		"service_request_count",
		"Count of requests for each handler",
		metricLabelHandler, metricLabelStatus, metricLabelSource,
	)
	// ServiceRequestDuration observe the duration of requests for each service function
	ServiceRequestDuration = newSummaryVec(
		"service_request_duration_seconds",
		"Seconds to unmarshal requests, execute a service function and marshal its reponses",
		metricLabelHandler, metricLabelStatus, metricLabelSource,
	)
	// UpdatesCompletedCounter count the number of successful updates
	UpdatesCompletedCounter = newCounterVec(
		"updates_completed_count",
		"Number of updates that were successfully completed",
	)
	// UpdatesFailedCounter count the number of updates that had an error
	UpdatesFailedCounter = newCounterVec(
		"updates_failed_count",
		"Number of updates that failed due to an error",
	)
	// UpdateDuration observe the duration of each repo.update() call
	UpdateDuration = newSummaryVec(
		"update_duration_seconds",
		"Duration in seconds for each repo.update() call",
	)
	// LinkResolutionCounter count resolved and unresolvable links per mount
	LinkResolutionCounter = newCounterVec(
		"link_resolution_count",
		"Number of link resolutions by outcome",
		metricLabelMount, metricLabelOutcome,
	)
	// LinkCacheCounter count link cache hits and misses
	LinkCacheCounter = newCounterVec(
		"link_cache_count",
		"Number of link cache lookups by result",
		metricLabelResult,
	)
	// BuildWarningsGauge site map entries skipped by the last build
	BuildWarningsGauge = newGaugeVec(
		"build_warnings_total",
		"Number of site map entries skipped due to configuration errors",
		metricLabelMount,
	)
	// NumSocketsGauge keep track of the total number of open sockets
	NumSocketsGauge = newGaugeVec(
		"num_sockets_total",
		"Total number of currently open socket connections",
		metricLabelRemote,
	)
	// HistoryPersistFailedCounter count the number of failed attempts to persist the site map history
	HistoryPersistFailedCounter = newCounterVec(
		"history_persist_failed_count",
		"Number of failures to store the site map history",
	)
	// NotifyFailedCounter count update notifications that could not be sent
	NotifyFailedCounter = newCounterVec(
		"notify_failed_count",
		"Number of failures to publish an update notification",
	)
)

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
