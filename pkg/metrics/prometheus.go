package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusHandler returns an HTTP handler for the Prometheus metrics endpoint
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
