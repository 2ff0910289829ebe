package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for booking and status flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	bookingLatency   *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by result code",
		}, []string{"result"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_duration_seconds",
			Help:      "Latency of booking attempts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "status_transitions_total",
			Help:      "Appointment status change attempts",
		}, []string{"from", "to", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.transitionsTotal)
	return m
}

// ObserveBooking records one booking attempt. result is "OK" or an error code.
func (m *BookingMetrics) ObserveBooking(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.bookingLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to, result).Inc()
}
