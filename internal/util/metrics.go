package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchasesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_created_total",
		Help: "Total number of purchases committed",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_failed_total",
		Help: "Total number of rejected or failed purchase requests",
	}, []string{"reason"})

	PurchaseItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_items_total",
		Help: "Total number of purchase lines written",
	})

	PurchaseCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_create_latency_seconds",
		Help:    "Latency of the purchase header and items transaction",
		Buckets: prometheus.DefBuckets,
	})

	PurchasedUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchased_units_total",
		Help: "Units sold per product, fed from purchase events",
	}, []string{"product_id"})

	CustomersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customers_registered_total",
		Help: "Total number of customer signups",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products added to the catalog",
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_requests_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Storefront events handled by the worker",
	}, []string{"event_type"})

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
