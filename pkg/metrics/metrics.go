/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics.go
Description: Prometheus collectors for exploration sessions. Package-level
counters and gauges registered once per process; recording helpers no-op until
Register has been called so library use without metrics stays free.
*/

package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	checksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "checks_total",
			Help:      "Number of data-loss comparisons performed.",
		},
	)
	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "incidents_total",
			Help:      "Number of data-loss incidents persisted, by reason.",
		}, []string{"reason"},
	)
	crashesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "crashes_detected_total",
			Help:      "Number of home-recurrence crash points found at session end.",
		},
	)
	capturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "captures_total",
			Help:      "Number of snapshot captures, by strategy outcome.",
		}, []string{"result"},
	)
	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "home_probes_total",
			Help:      "Number of home-button probes executed, by result.",
		}, []string{"result"},
	)
	rotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "rotations_total",
			Help:      "Number of orientation changes injected.",
		},
	)
	powerCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "power_cycles_total",
			Help:      "Number of power cycles injected.",
		},
	)
	snapshotHistorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "snapshot_history_size",
			Help:      "Snapshots currently held in the monitor's history window.",
		},
	)
	driverRSSBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "driver_rss_bytes",
			Help:      "Resident memory of the exploration driver process.",
		},
	)
	driverCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "akaylee",
			Subsystem: "droid",
			Name:      "driver_cpu_percent",
			Help:      "CPU usage of the exploration driver process.",
		},
	)
)

// Register registers all session collectors with the provided registerer.
// Safe to call multiple times; calls after a success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	collectors := []prometheus.Collector{
		checksTotal, incidentsTotal, crashesDetected, capturesTotal,
		probesTotal, rotationsTotal, powerCyclesTotal,
		snapshotHistorySize, driverRSSBytes, driverCPUPercent,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving the DefaultGatherer. The caller
// owns the HTTP server and route wiring.
func Handler() http.Handler { return promhttp.Handler() }

// Recording helpers. All no-op until Register has been called.

func IncCheck() {
	if regOK.Load() {
		checksTotal.Inc()
	}
}

func IncIncident(reason string) {
	if regOK.Load() {
		incidentsTotal.WithLabelValues(reason).Inc()
	}
}

func AddCrashes(n int) {
	if regOK.Load() {
		crashesDetected.Add(float64(n))
	}
}

func IncCapture(result string) {
	if regOK.Load() {
		capturesTotal.WithLabelValues(result).Inc()
	}
}

func IncProbe(result string) {
	if regOK.Load() {
		probesTotal.WithLabelValues(result).Inc()
	}
}

func IncRotation() {
	if regOK.Load() {
		rotationsTotal.Inc()
	}
}

func IncPowerCycle() {
	if regOK.Load() {
		powerCyclesTotal.Inc()
	}
}

func SetSnapshotHistory(n int) {
	if regOK.Load() {
		snapshotHistorySize.Set(float64(n))
	}
}

func SetDriverResources(rssBytes uint64, cpuPercent float64) {
	if regOK.Load() {
		driverRSSBytes.Set(float64(rssBytes))
		driverCPUPercent.Set(cpuPercent)
	}
}
