// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package zone

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/boundlessrealms/zoneserver/config"
	"github.com/boundlessrealms/zoneserver/log"
)

// BudgetMonitor implements spec.md §4.12: it times each tick against the
// configured thresholds and tracks whether the zone is currently in
// degraded QoS (zone/loop.go's AOI phase demotes near- and mid-tier
// candidates one tier, halving their send rate; far-tier candidates keep
// their rate) or has crossed into critical territory. Grounded on
// transport/server.go's connGauge registration idiom -- a
// prometheus.Gauge/Histogram pair registered once at construction, read
// and written without the caller needing to know about the registry.
type BudgetMonitor struct {
	qos config.QoS

	mu              sync.Mutex
	degraded        bool
	recoveredSince  time.Time
	recovering      bool

	tickDuration prometheus.Histogram
	degradedGauge prometheus.Gauge
	criticalCount prometheus.Counter
}

// NewBudgetMonitor builds a BudgetMonitor against qos's thresholds.
func NewBudgetMonitor(qos config.QoS) *BudgetMonitor {
	m := &BudgetMonitor{
		qos: qos,
		tickDuration: registerHistogram(prometheus.HistogramOpts{
			Name:    "zoneserver_tick_duration_seconds",
			Help:    "Wall-clock duration of each simulation tick.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		degradedGauge: registerGauge(prometheus.GaugeOpts{
			Name: "zoneserver_qos_degraded",
			Help: "1 when the zone is running in degraded QoS mode, 0 otherwise.",
		}),
		criticalCount: registerCounter(prometheus.CounterOpts{
			Name: "zoneserver_tick_budget_critical_total",
			Help: "Number of ticks that exceeded the critical tick-time threshold.",
		}),
	}
	return m
}

// registerHistogram, registerGauge and registerCounter register a freshly
// built collector against the default registry, but fall back to the
// already-registered instance instead of panicking when one exists -- a
// zone process only ever builds one BudgetMonitor, but package tests build
// several in the same binary, and re-registering the same metric name is
// not a bug worth a panic over.
func registerHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Histogram)
		}
		panic(err)
	}
	return h
}

func registerGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		panic(err)
	}
	return g
}

func registerCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

// Record reports one tick's wall-clock duration and updates the QoS state
// machine: a tick over DegradedThresholdMS enters degraded mode
// immediately; degraded mode clears only after RecoveryThresholdMS has held
// for RecoveryHoldSeconds continuously (spec.md §4.12's hysteresis, avoiding
// flapping at the threshold boundary). A tick over CriticalThresholdMS is
// logged regardless of the degraded/recovering state.
func (m *BudgetMonitor) Record(d time.Duration, tick uint32) {
	m.tickDuration.Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case d >= m.qos.Critical():
		m.criticalCount.Inc()
		m.degraded = true
		m.recovering = false
		log.Tick(log.For("zone.budget"), tick).WithField("tick_ms", d.Milliseconds()).Error("tick exceeded critical budget")
	case d >= m.qos.Degraded():
		if !m.degraded {
			log.Tick(log.For("zone.budget"), tick).WithField("tick_ms", d.Milliseconds()).Warn("tick exceeded degraded budget, entering degraded QoS")
		}
		m.degraded = true
		m.recovering = false
	case m.degraded:
		if d <= m.qos.Recovery() {
			if !m.recovering {
				m.recovering = true
				m.recoveredSince = time.Now()
			} else if time.Since(m.recoveredSince) >= m.qos.RecoveryHold() {
				m.degraded = false
				m.recovering = false
				log.Tick(log.For("zone.budget"), tick).Info("tick budget recovered, leaving degraded QoS")
			}
		} else {
			m.recovering = false
		}
	}

	if m.degraded {
		m.degradedGauge.Set(1)
	} else {
		m.degradedGauge.Set(0)
	}
}

// Degraded reports whether the zone is currently running in degraded QoS
// mode (see BudgetMonitor for what zone/loop.go changes in that mode).
func (m *BudgetMonitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}
