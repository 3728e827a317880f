// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bookOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookhub",
		Name:      "book_operations_total",
		Help:      "Book store mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	authOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookhub",
		Name:      "auth_operations_total",
		Help:      "Session operations by operation and outcome.",
	}, []string{"op", "outcome"})

	collectionSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookhub",
		Name:      "collection_books",
		Help:      "Books in the current collection snapshot.",
	})
)

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// BookOp records the outcome of a book store mutation.
func BookOp(op string, ok bool) {
	bookOps.WithLabelValues(op, outcome(ok)).Inc()
}

// AuthOp records the outcome of a login, register or logout.
func AuthOp(op string, ok bool) {
	authOps.WithLabelValues(op, outcome(ok)).Inc()
}

// CollectionSize reports the snapshot size after a load or refetch.
func CollectionSize(n int) {
	collectionSize.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
