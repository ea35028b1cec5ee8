package metrics

import "github.com/prometheus/client_golang/prometheus"

// Connection metrics - exported for use by pipeline package.
var (
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
)

// Handshake metrics - exported for use by pipeline and auth packages.
var (
	HandshakesTotal      prometheus.Counter
	HandshakeErrorsTotal *prometheus.CounterVec
	EncryptionEnabled    prometheus.Counter
)

// Codec metrics.
var (
	CompressionSwapsTotal *prometheus.CounterVec
)

func init() {
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tidegate",
		Name:      "connections_active",
		Help:      "Number of currently attached connections.",
	})
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tidegate",
		Name:      "connections_total",
		Help:      "Total number of connections attached since start.",
	})
	HandshakesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tidegate",
		Name:      "handshakes_total",
		Help:      "Total number of successfully processed login handshakes.",
	})
	HandshakeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tidegate",
		Name:      "handshake_errors_total",
		Help:      "Total number of failed login handshakes.",
	}, []string{"type"})
	EncryptionEnabled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tidegate",
		Name:      "encryption_enabled_total",
		Help:      "Total number of sessions switched to encrypted framing.",
	})
	CompressionSwapsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tidegate",
		Name:      "compression_swaps_total",
		Help:      "Total number of post-handshake compression renegotiations.",
	}, []string{"algorithm"})

	prometheus.MustRegister(
		ConnectionsActive, ConnectionsTotal,
		HandshakesTotal, HandshakeErrorsTotal, EncryptionEnabled,
		CompressionSwapsTotal,
	)
}
