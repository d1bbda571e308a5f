package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer reads the global provider on every call.
func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer("github.com/tupleflow/tupleflow/pkg/cluster")
}

var (
	deltasSentCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "cluster_deltas_sent_count",
		Help:      "The total number of deltas sent to a container through the cluster.",
	})

	pullsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "cluster_pulls_count",
		Help:      "The total number of pulls answered through the cluster, by outcome.",
	}, []string{"outcome"})

	pullDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace:                       "tupleflow",
		Name:                            "cluster_pull_duration_ms",
		Help:                            "The time it took a container to answer a pull.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: 0,
	})
)
