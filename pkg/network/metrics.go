package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer reads the global provider on every call.
func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer("github.com/tupleflow/tupleflow/pkg/network")
}

var (
	messagesPostedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "mailbox_messages_posted_count",
		Help:      "The total number of deltas queued into node mailboxes.",
	})

	messagesCoalescedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "mailbox_messages_coalesced_count",
		Help:      "The total number of deltas cancelled against their queued opposite.",
	})

	messagesDeliveredCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "mailbox_messages_delivered_count",
		Help:      "The total number of deltas delivered to receivers.",
	})

	fixedPointRoundsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tupleflow",
		Name:      "fixed_point_rounds",
		Help:      "The number of rounds a communication group needed to reach its fixed point.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
	})

	outOfOrderDeltasCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "closure_out_of_order_deltas_count",
		Help:      "The total number of edge deltas a closure node received with a timestamp older than its revision.",
	})

	drainCancelledCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "drain_cancelled_count",
		Help:      "The total number of scheduler runs interrupted by cancellation.",
	})
)
