package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records order store activity. A nil *OrderMetrics is valid
// and records nothing.
type OrderMetrics struct {
	refreshDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	created         *prometheus.CounterVec
	statusWrites    *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	refreshDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tableside_order_refresh_duration_seconds",
		Help:    "Duration of order list refreshes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_order_refreshes_total",
		Help: "Order list refreshes by result.",
	}, []string{"trigger", "result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_order_notifications_total",
		Help: "Realtime change notifications received by operation.",
	}, []string{"op"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_orders_created_total",
		Help: "Order creations by result.",
	}, []string{"result"})
	statusWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tableside_order_status_writes_total",
		Help: "Order status writes by target status and result.",
	}, []string{"status", "result"})
	reg.MustRegister(refreshDuration, refreshes, notifications, created, statusWrites)
	return &OrderMetrics{
		refreshDuration: refreshDuration,
		refreshes:       refreshes,
		notifications:   notifications,
		created:         created,
		statusWrites:    statusWrites,
	}
}

// ObserveRefresh records one refresh and its outcome.
func (m *OrderMetrics) ObserveRefresh(trigger string, duration time.Duration, err error) {
	if m == nil || m.refreshes == nil {
		return
	}
	m.refreshDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
	m.refreshes.WithLabelValues(normalizeLabel(trigger), result(err)).Inc()
}

// IncNotification counts a realtime notification.
func (m *OrderMetrics) IncNotification(op string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncCreated counts an order creation attempt that reached the backend.
func (m *OrderMetrics) IncCreated(err error) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(result(err)).Inc()
}

// IncStatusWrite counts a status write.
func (m *OrderMetrics) IncStatusWrite(status string, err error) {
	if m == nil || m.statusWrites == nil {
		return
	}
	m.statusWrites.WithLabelValues(normalizeLabel(status), result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
