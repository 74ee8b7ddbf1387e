// Package metrics defines the Prometheus collectors for the HTTP layer and the
// prediction pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heartrisk"

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by risk level",
		},
		[]string{"risk_level"},
	)

	PredictionProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_probability",
			Help:      "Distribution of predicted probabilities",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Submission store failures, by operation",
		},
		[]string{"op"},
	)

	ValidationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Prediction requests rejected by input validation",
		},
	)
)

func init() {
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(PredictionProbability)
	prometheus.MustRegister(StoreErrorsTotal)
	prometheus.MustRegister(ValidationFailuresTotal)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
