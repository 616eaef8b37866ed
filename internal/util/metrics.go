package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of sales created",
	})

	SalesReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_replayed_total",
		Help: "Total number of sale requests answered from an idempotency key",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of rejected or failed sale requests",
	}, []string{"reason"})

	SalesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_cancelled_total",
		Help: "Total number of cancelled sales",
	})

	CompensationsPending = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sale_compensations_pending_total",
		Help: "Total number of cancellations left with pending compensation",
	})

	CompensationRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_compensation_repairs_total",
		Help: "Total number of compensation repair attempts",
	}, []string{"result"})

	ReconciliationIssuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_issues_total",
		Help: "Total number of compensations that could not be applied to an item",
	})

	PurchaseOrdersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_submitted_total",
		Help: "Total number of purchase orders submitted",
	})

	PurchaseOrdersArrivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_arrived_total",
		Help: "Total number of purchase orders processed into inventory",
	})

	ArrivalReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_order_arrival_replays_total",
		Help: "Total number of arrival requests for orders already processed",
	})

	ArrivalFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_order_arrival_failures_total",
		Help: "Total number of arrival requests that failed and left the order pending",
	}, []string{"reason"})

	StockAdjustLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_adjust_latency_seconds",
		Help:    "Latency of stock-moving units of work",
		Buckets: prometheus.DefBuckets,
	})

	LockContentionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_lock_contention_total",
		Help: "Total number of operations rejected because the entity lock was held",
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
