package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	CartRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_rejections_total",
		Help: "Total number of rejected cart operations",
	}, []string{"reason"})

	CartQtyClampsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_qty_clamps_total",
		Help: "Total number of quantity requests clamped to the stock ceiling",
	})

	CartLoadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_load_failures_total",
		Help: "Total number of persisted cart reads that degraded to an empty cart",
	})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of preorders placed at checkout",
	})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of preorders confirmed by a seller",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of preorders rejected",
	}, []string{"reason"})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	StockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Total number of confirmations refused because stock dropped below the reserved quantity",
	})

	StockInconsistenciesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_inconsistencies_total",
		Help: "Total number of confirmations where the status flip succeeded but a stock decrement failed",
	})

	StockDecrementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_decrement_latency_seconds",
		Help:    "Latency of the confirmation-time stock decrement",
		Buckets: prometheus.DefBuckets,
	})

	AvailabilityLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_lookups_total",
		Help: "Total number of stock lookups by resolution source",
	}, []string{"source"})

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
