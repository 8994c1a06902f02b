package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the receptionist's operational counters.
//
// Everything a shift supervisor would ask about the phone line is here:
// call volume, where turns land in the flow, how many bookings stick, and
// how often two callers race for the same slot.
type Metrics struct {
	// CallsStarted counts inbound calls answered.
	CallsStarted prometheus.Counter

	// CallsCompleted counts calls for which the completion callback was
	// processed (duplicates excluded).
	CallsCompleted prometheus.Counter

	// ActiveCalls tracks calls with live conversation state.
	ActiveCalls prometheus.Gauge

	// Turns counts processed turns by the stage they arrived in.
	Turns *prometheus.CounterVec

	// BookingsReserved counts successful slot reservations.
	BookingsReserved prometheus.Counter

	// ReservationConflicts counts reserve attempts that lost the race for
	// a slot.
	ReservationConflicts prometheus.Counter

	// SilenceHangups counts calls ended because the caller went quiet.
	SilenceHangups prometheus.Counter
}

// NewMetrics creates the metric set and registers it with reg. Tests pass
// their own registry; production uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_calls_started_total",
			Help: "Inbound calls answered.",
		}),
		CallsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_calls_completed_total",
			Help: "Call completion callbacks processed, duplicates excluded.",
		}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "frontdesk_active_calls",
			Help: "Calls with live conversation state.",
		}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_turns_total",
			Help: "Dialogue turns processed, by arriving stage.",
		}, []string{"stage"}),
		BookingsReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_bookings_reserved_total",
			Help: "Appointment slots successfully reserved.",
		}),
		ReservationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_reservation_conflicts_total",
			Help: "Reserve attempts that found the slot already taken.",
		}),
		SilenceHangups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_silence_hangups_total",
			Help: "Calls ended after repeated silence.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CallsStarted, m.CallsCompleted, m.ActiveCalls, m.Turns,
			m.BookingsReserved, m.ReservationConflicts, m.SilenceHangups,
		)
	}
	return m
}
