package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	identityResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_resolutions_total",
			Help: "Identity resolutions by resolved variant or failure.",
		},
		[]string{"outcome"},
	)

	backendRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_retries_total",
			Help: "Retried calls to the hosted backend by operation.",
		},
		[]string{"op"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the last readiness probe succeeded.",
	})
)

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			identityResolutions, backendRetries, readyGauge)
	})
}

// Handler exposes the prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResolution counts an identity resolution outcome
// ("platform_admin", "member", "unauthenticated", "error").
func ObserveResolution(outcome string) {
	identityResolutions.WithLabelValues(outcome).Inc()
}

// ObserveBackendRetry counts one retry of a backend call.
func ObserveBackendRetry(op string) {
	backendRetries.WithLabelValues(op).Inc()
}

// SetReady records readiness.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// Instrument wraps next with RPS, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

var processSuffixes = map[string]bool{
	"answers":  true,
	"recovery": true,
	"costs":    true,
	"scenario": true,
	"save":     true,
}

// CanonicalPath collapses record identifiers so metric label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	switch {
	case strings.HasPrefix(raw, "/v1/bia/processes/"):
		rest := strings.Trim(strings.TrimPrefix(raw, "/v1/bia/processes/"), "/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			return "/v1/bia/processes/:id"
		case len(parts) == 2 && processSuffixes[parts[1]]:
			return "/v1/bia/processes/:id/" + parts[1]
		}
	case strings.HasPrefix(raw, "/v1/analytics/"):
		return "/v1/analytics/:name"
	case strings.HasPrefix(raw, "/v1/bia/templates/"):
		rest := strings.Trim(strings.TrimPrefix(raw, "/v1/bia/templates/"), "/")
		if rest != "" && !strings.Contains(rest, "/") {
			return "/v1/bia/templates/:name"
		}
	}
	return raw
}

// statusWriter captures the response code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
