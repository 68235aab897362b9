// Package metrics defines the prometheus collectors exported by a splinter
// node, grounded on the teacher's metrics package: a thin struct wrapping a
// prometheus.Registerer that every subsystem registers its collectors
// against at construction time.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector a node exports, namespaced per subsystem.
type Metrics struct {
	registry prometheus.Registerer

	MeshConnections   prometheus.Gauge
	MeshBytesSent     prometheus.Counter
	MeshBytesReceived prometheus.Counter
	MeshSendErrors    *prometheus.CounterVec

	AdminProposalsSubmitted *prometheus.CounterVec
	AdminCircuitsActive     prometheus.Gauge
	AdminProposalLatency    prometheus.Histogram

	ScabbardBatchesSubmitted prometheus.Counter
	ScabbardBatchesCommitted prometheus.Counter
	ScabbardBatchesAborted   prometheus.Counter
	ScabbardEpochLatency     prometheus.Histogram
	ScabbardStateTreeNodes   prometheus.Gauge
}

// New builds a Metrics and registers every collector against reg. reg must
// not be nil; callers that don't want metrics exported should pass a
// prometheus.NewRegistry() they never serve.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registry: reg,

		MeshConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "splinter",
			Subsystem: "mesh",
			Name:      "connections",
			Help:      "Number of live mesh connections.",
		}),
		MeshBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "mesh",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written across all mesh connections.",
		}),
		MeshBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "mesh",
			Name:      "bytes_received_total",
			Help:      "Total bytes read across all mesh connections.",
		}),
		MeshSendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "mesh",
			Name:      "send_errors_total",
			Help:      "Send failures by reason.",
		}, []string{"reason"}),

		AdminProposalsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "admin",
			Name:      "proposals_submitted_total",
			Help:      "Circuit proposals submitted, by proposal type and outcome.",
		}, []string{"type", "outcome"}),
		AdminCircuitsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "splinter",
			Subsystem: "admin",
			Name:      "circuits_active",
			Help:      "Number of committed circuits this node is a member of.",
		}),
		AdminProposalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splinter",
			Subsystem: "admin",
			Name:      "proposal_latency_seconds",
			Help:      "Time from proposal submission to commit or rejection.",
			Buckets:   prometheus.DefBuckets,
		}),

		ScabbardBatchesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "scabbard",
			Name:      "batches_submitted_total",
			Help:      "Batches accepted for two-phase-commit sequencing.",
		}),
		ScabbardBatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "scabbard",
			Name:      "batches_committed_total",
			Help:      "Batches that reached a commit decision.",
		}),
		ScabbardBatchesAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splinter",
			Subsystem: "scabbard",
			Name:      "batches_aborted_total",
			Help:      "Batches that reached an abort decision, including alarm-triggered aborts.",
		}),
		ScabbardEpochLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splinter",
			Subsystem: "scabbard",
			Name:      "epoch_latency_seconds",
			Help:      "Time from vote request to decision for a two-phase-commit epoch.",
			Buckets:   prometheus.DefBuckets,
		}),
		ScabbardStateTreeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "splinter",
			Subsystem: "scabbard",
			Name:      "state_tree_nodes",
			Help:      "Approximate live node count in the Merkle-Radix state tree.",
		}),
	}

	for _, c := range m.collectors() {
		_ = reg.Register(c)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MeshConnections, m.MeshBytesSent, m.MeshBytesReceived, m.MeshSendErrors,
		m.AdminProposalsSubmitted, m.AdminCircuitsActive, m.AdminProposalLatency,
		m.ScabbardBatchesSubmitted, m.ScabbardBatchesCommitted, m.ScabbardBatchesAborted,
		m.ScabbardEpochLatency, m.ScabbardStateTreeNodes,
	}
}
