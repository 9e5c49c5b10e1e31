// Package metrics exposes robot state and bridge activity as Prometheus
// metrics on GET /metrics.
//
// Gauges follow the session (registered as a state listener); counters are
// fed by the API for every characteristic write.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/dyson360-bridge/internal/accessory"
	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

const namespace = "dyson360"

// Command outcomes used as the "result" label.
const (
	ResultOK           = "ok"
	ResultUnresponsive = "unresponsive"
	ResultFailed       = "failed"
	ResultRejected     = "rejected"
)

// knownLifecycles are always exported so absent states read 0 rather than vanish.
var knownLifecycles = []vacuum.LifecycleState{
	vacuum.LifecycleDockedCharged,
	vacuum.LifecycleDockedCharging,
	vacuum.LifecycleCleaning,
	vacuum.LifecycleCleaningPaused,
	vacuum.LifecycleCleaningAborted,
}

// Collector owns the bridge's Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	battery      prometheus.Gauge
	quietPower   prometheus.Gauge
	lifecycle    *prometheus.GaugeVec
	lastStatus   prometheus.Gauge
	statusTotal  prometheus.Counter
	commandTotal *prometheus.CounterVec
}

// New creates a collector with its own registry. connected reports the robot
// link state at scrape time and may be nil.
func New(version string, connected func() bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_level_percent",
			Help:      "Battery charge reported by the robot (0-100)",
		}),
		quietPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quiet_power",
			Help:      "1 when the robot runs in half power mode",
		}),
		lifecycle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifecycle_state",
			Help:      "1 for the robot's current lifecycle state, 0 otherwise",
		}, []string{"state"}),
		lastStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_status_timestamp_seconds",
			Help:      "Receipt time of the last CURRENT-STATE message (epoch seconds)",
		}),
		statusTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_reports_total",
			Help:      "CURRENT-STATE messages reconciled",
		}),
		commandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "characteristic_writes_total",
			Help:      "Characteristic writes by name and result",
		}, []string{"characteristic", "result"}),
	}

	for _, s := range knownLifecycles {
		c.lifecycle.WithLabelValues(string(s)).Set(0)
	}

	c.registry.MustRegister(
		c.battery,
		c.quietPower,
		c.lifecycle,
		c.lastStatus,
		c.statusTotal,
		c.commandTotal,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"version": version},
		}, func() float64 { return 1 }),
	)

	if connected != nil {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_connected",
			Help:      "1 while the MQTT link to the robot is up",
		}, func() float64 {
			if connected() {
				return 1
			}
			return 0
		}))
	}

	return c
}

// Observe updates the state gauges. It has the vacuum.Listener signature.
func (c *Collector) Observe(prev, next vacuum.State) {
	c.statusTotal.Inc()
	c.battery.Set(float64(next.BatteryLevel))

	if next.IsQuietPower() {
		c.quietPower.Set(1)
	} else {
		c.quietPower.Set(0)
	}

	if prev.Lifecycle != next.Lifecycle && prev.Lifecycle != "" {
		c.lifecycle.WithLabelValues(string(prev.Lifecycle)).Set(0)
	}
	c.lifecycle.WithLabelValues(string(next.Lifecycle)).Set(1)

	if !next.UpdatedAt.IsZero() {
		c.lastStatus.Set(float64(next.UpdatedAt.Unix()))
	}
}

// ObserveWrite counts a characteristic write by its outcome.
func (c *Collector) ObserveWrite(name string, err error) {
	c.commandTotal.WithLabelValues(name, Result(err)).Inc()
}

// Result classifies a write error into a result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, vacuum.ErrDeviceUnresponsive), errors.Is(err, context.DeadlineExceeded):
		return ResultUnresponsive
	case errors.Is(err, accessory.ErrReadOnly),
		errors.Is(err, accessory.ErrInvalidValue),
		errors.Is(err, accessory.ErrUnknownCharacteristic):
		return ResultRejected
	default:
		return ResultFailed
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
