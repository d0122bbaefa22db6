package buildwire

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildwire_requests_sent_total",
			Help: "Requests issued to the worker",
		},
		[]string{"command"},
	)

	responsesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildwire_responses_received_total",
			Help: "Responses resolved per command and outcome",
		},
		[]string{"command", "outcome"},
	)

	pluginDispatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildwire_plugin_dispatches_total",
			Help: "Inbound plugin invocations dispatched to host loaders",
		},
	)

	transportBytesIn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildwire_transport_read_bytes_total",
			Help: "Bytes read from the worker's output stream",
		},
	)

	transportBytesOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buildwire_transport_written_bytes_total",
			Help: "Bytes written to the worker's input stream",
		},
	)
)

// RegisterMetrics registers all collectors with reg. The collectors work
// unregistered too; registration only makes them scrapeable.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		requestsSent,
		responsesReceived,
		pluginDispatches,
		transportBytesIn,
		transportBytesOut,
	)
}
