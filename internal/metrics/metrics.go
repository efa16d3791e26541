// Package metrics объявляет метрики Prometheus движка подписок.
// Метрики регистрируются в реестре по умолчанию и отдаются обработчиком /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequests считает вызовы платежного шлюза по операции и исходу.
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sshsub_gateway_requests_total",
			Help: "Total payment gateway calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	// GatewayDuration время ответа платежного шлюза.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sshsub_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// OrdersInitiated считает созданные заказы по тарифу.
	OrdersInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sshsub_orders_initiated_total",
			Help: "Total orders created at the payment gateway by plan.",
		},
		[]string{"plan"},
	)

	// OrdersReconciled считает сверки заказов по исходу.
	OrdersReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sshsub_orders_reconciled_total",
			Help: "Total order reconciliations by outcome.",
		},
		[]string{"outcome"},
	)

	// SweepRuns считает проходы очистки по исходу: completed, skipped, failed.
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sshsub_sweep_runs_total",
			Help: "Total expiry sweep runs by outcome.",
		},
		[]string{"outcome"},
	)

	// SweepRevoked считает пользователей, у которых очистка отозвала доступ.
	SweepRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sshsub_sweep_revoked_total",
			Help: "Total users revoked by the expiry sweep.",
		},
	)

	// ProvisioningFailures считает ошибки отзыва доступа на хосте.
	ProvisioningFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sshsub_provisioning_failures_total",
			Help: "Total failed access revocations.",
		},
	)

	// StoreConflicts считает повторы записи документа из-за конфликта версий.
	StoreConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sshsub_store_conflicts_total",
			Help: "Total document writes retried after a version conflict.",
		},
	)

	// HTTPRequests считает HTTP-запросы по методу, шаблону маршрута и коду ответа.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests received.",
		},
		[]string{"method", "path", "code"},
	)

	// HTTPDuration время обработки HTTP-запросов.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "code"},
	)
)
