// Package metric exposes connector counters through prometheus.
// A nil *Metrics is valid and records nothing.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "neuron"
	Subsystem = "connector"
)

const (
	DropReasonDecode    = "decode"
	DropReasonWrite     = "write"
	DropReasonDispose   = "dispose"
	DropReasonQueueFull = "queue_full"
)

type Metrics struct {
	framesSent        *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	connectAttempts   prometheus.Counter
	connectErrors     prometheus.Counter
	registrationsSent prometheus.Counter
	queueDepth        prometheus.Gauge
	connected         prometheus.Gauge
}

// New registers the connector metrics for one neuron with registry.
// A nil registry disables metrics.
func New(registry prometheus.Registerer, neuron string) *Metrics {
	if registry == nil {
		return nil
	}

	factory := promauto.With(registry)
	labels := prometheus.Labels{"neuron": neuron}

	return &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "frames_sent_total",
			Help:        "Frames written to the bus",
			ConstLabels: labels,
		}, []string{"kind"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "frames_received_total",
			Help:        "Complete messages received from the bus",
			ConstLabels: labels,
		}, []string{"kind"}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "frames_dropped_total",
			Help:        "Frames discarded without delivery",
			ConstLabels: labels,
		}, []string{"reason"}),

		connectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "connect_attempts_total",
			Help:        "Transport connection attempts",
			ConstLabels: labels,
		}),

		connectErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "connect_errors_total",
			Help:        "Failed transport connection attempts",
			ConstLabels: labels,
		}),

		registrationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "registrations_sent_total",
			Help:        "Registration payloads written, one per established connection",
			ConstLabels: labels,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "send_queue_depth",
			Help:        "Frames waiting in the send queue",
			ConstLabels: labels,
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        "connected",
			Help:        "1 while registered with the bus",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) FramesDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.framesDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

func (m *Metrics) ConnectError() {
	if m == nil {
		return
	}
	m.connectErrors.Inc()
}

func (m *Metrics) RegistrationSent() {
	if m == nil {
		return
	}
	m.registrationsSent.Inc()
}

func (m *Metrics) QueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) Connected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
