package handlers

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"upscale-viewer/internal/logging"
)

// promLogger routes promhttp gathering errors into the application log.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	logging.Warn("metrics: %s", fmt.Sprint(v...))
}

// MetricsHandler serves the default registry. A collector that fails to
// gather is logged and skipped rather than failing the scrape.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:          promLogger{},
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}),
	)
}
