package engine

// metrics.go is a thin abstraction over Prometheus, the direct rename of
// the teacher's pkg/metrics.go: when New is called with WithMetrics(reg) we
// create and register unlabeled collectors; otherwise a no-op sink is used and the Step
// hot path pays nothing for metric updates.
//
// ┌──────────────────────────────┬──────┐
// │ Metric                       │ Type │
// ├───────────────────────────────┼──────┤
// │ rvjit_lookups_total           │ Ctr  │
// │ rvjit_promotions_total        │ Ctr  │
// │ rvjit_residency_hits_total    │ Ctr  │
// │ rvjit_residency_misses_total  │ Ctr  │
// │ rvjit_mode_switches_total     │ Ctr  │
// │ rvjit_arena_bytes_used        │ Gge  │
// │ rvjit_residency_size          │ Gge  │
// └──────────────────────────────┴──────┘
//
// © 2025 rvjit authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is the internal interface Engine depends on; not exported,
// mirroring the teacher's metricsSink.
type metricsSink interface {
	incLookup()
	incPromotion()
	incResidencyHit()
	incResidencyMiss()
	incModeSwitch()
	setArenaBytesUsed(v uint64)
	setResidencySize(v int)
}

type noopMetrics struct{}

func (noopMetrics) incLookup()               {}
func (noopMetrics) incPromotion()            {}
func (noopMetrics) incResidencyHit()         {}
func (noopMetrics) incResidencyMiss()        {}
func (noopMetrics) incModeSwitch()           {}
func (noopMetrics) setArenaBytesUsed(uint64) {}
func (noopMetrics) setResidencySize(int)     {}

type promMetrics struct {
	lookups        prometheus.Counter
	promotions     prometheus.Counter
	residencyHits  prometheus.Counter
	residencyMiss  prometheus.Counter
	modeSwitches   prometheus.Counter
	arenaBytesUsed prometheus.Gauge
	residencySize  prometheus.Gauge
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		lookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rvjit", Name: "lookups_total",
			Help: "Number of outer-loop Directory lookups performed.",
		}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rvjit", Name: "promotions_total",
			Help: "Number of PCs promoted from cold to hot and compiled.",
		}),
		residencyHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rvjit", Name: "residency_hits_total",
			Help: "Number of native executions of an already-resident block.",
		}),
		residencyMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rvjit", Name: "residency_misses_total",
			Help: "Number of native executions that evicted another block to admit one.",
		}),
		modeSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rvjit", Name: "mode_switches_total",
			Help: "Number of transitions between interpreted and native dispatch.",
		}),
		arenaBytesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rvjit", Name: "arena_bytes_used",
			Help: "Bytes currently consumed in the Code Arena.",
		}),
		residencySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rvjit", Name: "residency_size",
			Help: "Current Residency Queue occupancy.",
		}),
	}
	reg.MustRegister(pm.lookups, pm.promotions, pm.residencyHits,
		pm.residencyMiss, pm.modeSwitches, pm.arenaBytesUsed, pm.residencySize)
	return pm
}

func (m *promMetrics) incLookup()                 { m.lookups.Inc() }
func (m *promMetrics) incPromotion()               { m.promotions.Inc() }
func (m *promMetrics) incResidencyHit()            { m.residencyHits.Inc() }
func (m *promMetrics) incResidencyMiss()           { m.residencyMiss.Inc() }
func (m *promMetrics) incModeSwitch()              { m.modeSwitches.Inc() }
func (m *promMetrics) setArenaBytesUsed(v uint64)  { m.arenaBytesUsed.Set(float64(v)) }
func (m *promMetrics) setResidencySize(v int)      { m.residencySize.Set(float64(v)) }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
