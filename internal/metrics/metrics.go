// Package metrics exposes dispatcher counters on a Prometheus endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_messages_received_total",
		Help: "Queue messages pulled by the dispatch loop.",
	})
	MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_messages_deleted_total",
		Help: "Queue messages acknowledged after handling.",
	})
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_parse_failures_total",
		Help: "Messages whose body could not be parsed as a notification.",
	})
	RecordsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_records_dispatched_total",
		Help: "Upload records for which a transcode task was launched.",
	})
	RecordsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_records_rejected_total",
		Help: "Upload records skipped by validation.",
	})
	LaunchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_launch_failures_total",
		Help: "Transcode task launches that failed.",
	})
	ReceiveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_receive_errors_total",
		Help: "Errors while polling the queue.",
	})
)

// Serve blocks serving /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
