package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the vault's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ConnectorStatuses      *prometheus.CounterVec
	WarehouseStatuses      *prometheus.CounterVec
	WarehouseCheckDuration prometheus.Histogram
	TokenRefreshes         *prometheus.CounterVec
	KeepAlives             *prometheus.CounterVec
	APIRequests            *prometheus.CounterVec
	APIRequestDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registerer := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ConnectorStatuses: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_connector_status_total",
				Help: "Connector statuses derived, by integration and status",
			},
			[]string{"integration", "status"},
		),

		WarehouseStatuses: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_warehouse_status_total",
				Help: "Warehouse status checks, by outcome",
			},
			[]string{"status"},
		),

		WarehouseCheckDuration: registerer.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_warehouse_check_duration_seconds",
			Help:    "Warehouse status check duration in seconds, refresh included",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		TokenRefreshes: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_token_refresh_total",
				Help: "OAuth token refresh attempts, by outcome",
			},
			[]string{"outcome"},
		),

		KeepAlives: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_store_keepalive_total",
				Help: "Store keep-alive pings, by outcome",
			},
			[]string{"outcome"},
		),

		APIRequests: registerer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_api_requests_total",
				Help: "HTTP requests served, by route and status code",
			},
			[]string{"method", "route", "status"},
		),

		APIRequestDuration: registerer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_api_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) ObserveConnectorStatus(integrationID domain.IntegrationType, status domain.ConnectorStatus) {
	m.ConnectorStatuses.WithLabelValues(string(integrationID), string(status)).Inc()
}

func (m *Metrics) ObserveWarehouseStatus(status string, duration time.Duration) {
	m.WarehouseStatuses.WithLabelValues(status).Inc()
	m.WarehouseCheckDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveKeepAlive(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.KeepAlives.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.APIRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
