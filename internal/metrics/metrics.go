// Package metrics provides Prometheus metrics for the charge limiter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "charge_limiter"

// AppliedLimit is the last charge current limit read back or written, in mA.
var AppliedLimit = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "applied_limit_milliamps",
	Help:      "Charge current limit currently in force.",
})

// Temperature is the last sampled temperature per sensor.
var Temperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "temperature_millicelsius",
	Help:      "Last sampled temperature in milli-degrees Celsius.",
}, []string{"sensor"})

// LimitWrites counts successful limit writes.
var LimitWrites = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "limit_writes_total",
	Help:      "Total charge current limit writes.",
})

// Errors counts failed reads and writes by operation.
var Errors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "errors_total",
	Help:      "Failed pseudo-file operations by operation.",
}, []string{"op"})

// LimitingActive is 1 while the monitoring loop is running.
var LimitingActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "limiting_active",
	Help:      "Whether the monitoring loop is running.",
})

// StatusChanges counts deduplicated battery status transitions.
var StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "status_changes_total",
	Help:      "Battery status transitions by new status.",
}, []string{"status"})

// Error operation labels.
const (
	OpPresenceRead = "presence_read"
	OpTypeRead     = "type_read"
	OpAppliedRead  = "applied_read"
	OpTempRead     = "temp_read"
	OpLimitWrite   = "limit_write"
	OpStatusRead   = "status_read"
)
