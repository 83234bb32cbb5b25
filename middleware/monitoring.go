package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	authRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of unauthorized requests",
		},
		[]string{"reason"},
	)

	recordsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daily_records_saved_total",
			Help: "Daily records saved, by refund plan",
		},
		[]string{"plan"},
	)
	challengesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenges_completed_total",
			Help: "Challenges that left the active state, by plan and reason",
		},
		[]string{"plan", "reason"},
	)
	refundsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_issued_total",
			Help: "Settled refunds, by outcome",
		},
		[]string{"outcome"},
	)
	refundedAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunded_amount_total",
			Help: "Sum of refunded amounts in the smallest currency unit",
		},
	)
	plansUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plans_unlocked_total",
			Help: "Plan tiers granted to users",
		},
		[]string{"plan"},
	)
)

// InitPrometheus registers the metrics. Call this once from main.
func InitPrometheus() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		authRejections,
		recordsSaved,
		challengesCompleted,
		refundsIssued,
		refundedAmount,
		plansUnlocked,
	)
}

func ObserveRecordSaved(plan string) {
	recordsSaved.WithLabelValues(plan).Inc()
}

func ObserveChallengeCompleted(plan, reason string) {
	challengesCompleted.WithLabelValues(plan, reason).Inc()
}

// ObserveRefund counts a settlement; outcome is "refunded", "skipped" or "failed".
func ObserveRefund(outcome string, amount int64) {
	refundsIssued.WithLabelValues(outcome).Inc()
	if outcome == "refunded" && amount > 0 {
		refundedAmount.Add(float64(amount))
	}
}

func ObservePlanUnlocked(plan string) {
	plansUnlocked.WithLabelValues(plan).Inc()
}

// MonitorMiddleware tracks request counts and latency per route template.
func MonitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		path := routePath(r)

		httpRequestsTotal.WithLabelValues(path, r.Method, http.StatusText(ww.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method).Observe(duration)

		if ww.statusCode == http.StatusUnauthorized {
			authRejections.WithLabelValues("401_unauthorized").Inc()
		} else if ww.statusCode == http.StatusForbidden {
			authRejections.WithLabelValues("403_forbidden").Inc()
		}
	})
}

// routePath keeps label cardinality bounded for routes with ids or dates in them.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// BasicAuthMiddleware protects /metrics. Empty credentials lock the endpoint.
func BasicAuthMiddleware(metricsUser, metricsPass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()

			if !ok || metricsUser == "" ||
				subtle.ConstantTimeCompare([]byte(user), []byte(metricsUser)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(metricsPass)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PprofSecurityMiddleware protects /debug/pprof
func PprofSecurityMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Header.Get("X-Pprof-Secret") != secret {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
