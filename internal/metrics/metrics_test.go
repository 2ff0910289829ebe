package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("OK", 20*time.Millisecond)
	m.ObserveBooking("SLOT_TAKEN", 5*time.Millisecond)
	m.ObserveBooking("SLOT_TAKEN", 7*time.Millisecond)
	m.ObserveTransition("SCHEDULED", "CONFIRMED", "OK")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("OK")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("SLOT_TAKEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("SCHEDULED", "CONFIRMED", "OK")))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("OK", time.Millisecond)
	m.ObserveTransition("SCHEDULED", "CANCELLED", "OK")
}
