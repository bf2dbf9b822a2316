package cansim

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts simulated bus traffic per node. A nil *Metrics counts
// nothing.
type Metrics struct {
	Transmitted *prometheus.CounterVec
	Received    *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	Overruns    *prometheus.CounterVec
	Aborts      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cansim_frames_transmitted_total",
			Help: "Frames transmitted from a node's mailboxes.",
		}, []string{"node"}),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cansim_frames_received_total",
			Help: "Frames accepted by a node's filters and stored in a FIFO.",
		}, []string{"node", "fifo"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cansim_frames_rejected_total",
			Help: "Frames not accepted by a node, by reason.",
		}, []string{"node", "reason"}),
		Overruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cansim_fifo_overruns_total",
			Help: "Frames arriving at a full FIFO.",
		}, []string{"node", "fifo"}),
		Aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cansim_transmit_aborts_total",
			Help: "Pending transmissions aborted by software.",
		}, []string{"node"}),
	}
	if reg != nil {
		reg.MustRegister(m.Transmitted, m.Received, m.Rejected, m.Overruns, m.Aborts)
	}
	return m
}

// Rejection reasons.
const (
	ReasonOffline    = "offline"
	ReasonFilterInit = "filter_init"
	ReasonNoMatch    = "no_match"
)

func (m *Metrics) transmitted(node string) {
	if m == nil {
		return
	}
	m.Transmitted.WithLabelValues(node).Inc()
}

func (m *Metrics) received(node, fifo string) {
	if m == nil {
		return
	}
	m.Received.WithLabelValues(node, fifo).Inc()
}

func (m *Metrics) rejected(node, reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(node, reason).Inc()
}

func (m *Metrics) overrun(node, fifo string) {
	if m == nil {
		return
	}
	m.Overruns.WithLabelValues(node, fifo).Inc()
}

func (m *Metrics) aborted(node string) {
	if m == nil {
		return
	}
	m.Aborts.WithLabelValues(node).Inc()
}
