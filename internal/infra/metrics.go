package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: исходы операций signup/login/refresh/admin
	Operations *prometheus.CounterVec

	// Выпущенные токены по типу (access/refresh)
	TokensIssued *prometheus.CounterVec

	// Исходы фильтра запросов: anonymous, authenticated, rejected, unresolved
	FilterOutcomes *prometheus.CounterVec

	// Latency HTTP-обработчиков
	RequestDuration *prometheus.HistogramVec

	// Saturation: состояние Circuit Breaker хранилища (0 - closed, 1 - half-open, 2 - open)
	StoreCircuitState prometheus.Gauge

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Operations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Total number of authentication operations by result.",
		}, []string{"operation", "result"}),

		TokensIssued: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of issued tokens by type.",
		}, []string{"type"}),

		FilterOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_filter_outcomes_total",
			Help: "Outcomes of bearer token authentication per request.",
		}, []string{"outcome"}),

		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_http_request_duration_seconds",
			Help:    "Histogram of request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route", "status"}),

		StoreCircuitState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "auth_store_circuit_state",
			Help: "Current state of the user store circuit breaker (0=closed, 1=half-open, 2=open).",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "auth_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}

// Result переводит ошибку операции в метку для счетчика.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
