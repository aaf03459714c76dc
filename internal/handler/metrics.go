package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/minipool/internal/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	poolOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minipool_operations_total",
		Help: "Pool operations by kind (deposit, withdraw, approve) and result.",
	}, []string{"kind", "result"})

	poolTotalDeposited = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minipool_total_deposited",
		Help: "Sum of all tracked participant balances.",
	})

	poolCustody = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minipool_custody",
		Help: "Asset balance held at the pool address.",
	})

	poolReconcileFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minipool_reconcile_failures_total",
		Help: "Reconciliation checks that found the pool inconsistent, by reason.",
	}, []string{"reason"})

	healthCheckDegraded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "minipool_health_check_degraded",
		Help: "1 while a background pool check is degraded, 0 once it recovers.",
	}, []string{"check"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minipool_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minipool_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordOperation counts one pool operation. result is "ok" or a short
// error label from errorLabel.
func RecordOperation(kind, result string) {
	poolOperationsTotal.WithLabelValues(kind, result).Inc()
}

// SetPoolGauges publishes the tracked total and the custody balance.
func SetPoolGauges(total, custody uint64) {
	poolTotalDeposited.Set(float64(total))
	poolCustody.Set(float64(custody))
}

// SetCheckDegraded publishes the state of one background check.
func SetCheckDegraded(check string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1
	}
	healthCheckDegraded.WithLabelValues(check).Set(v)
}

// RecordReconcileFailure counts a failed reconciliation.
func RecordReconcileFailure(reason string) {
	poolReconcileFailures.WithLabelValues(reason).Inc()
}

// ObservePool refreshes the pool gauges and runs one reconciliation,
// returning its result.
func ObservePool(ctx context.Context, p *pool.Pool, logger *zap.Logger) error {
	custody, err := p.Custody(ctx)
	if err != nil {
		logger.Warn("read custody balance", zap.Error(err))
		return err
	}
	SetPoolGauges(p.TotalDeposited(), custody)

	if err := p.Reconcile(ctx); err != nil {
		RecordReconcileFailure(errorLabel(err))
		logger.Error("pool reconciliation failed", zap.Error(err))
		return err
	}
	return nil
}
