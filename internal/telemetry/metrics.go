package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration tracks request latency by method, route, and status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "parkcore",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// PalletOccupancyChanges counts pallet state transitions by site and reason.
var PalletOccupancyChanges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "pallet",
		Name:      "occupancy_changes_total",
		Help:      "Total number of pallet occupancy state transitions.",
	},
	[]string{"site_id", "transition"},
)

// BookingsCreatedTotal counts bookings by vehicle class and machine type.
var BookingsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "booking",
		Name:      "created_total",
		Help:      "Total number of bookings created.",
	},
	[]string{"vehicle_type", "machine_type"},
)

// BookingsCompletedTotal counts bookings by terminal status.
var BookingsCompletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "booking",
		Name:      "completed_total",
		Help:      "Total number of bookings reaching a terminal status.",
	},
	[]string{"status"},
)

// OTPVerificationsTotal counts OTP verification attempts by outcome.
var OTPVerificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "booking",
		Name:      "otp_verifications_total",
		Help:      "Total number of OTP verification attempts.",
	},
	[]string{"outcome"},
)

// MembershipsCreatedTotal counts memberships issued by plan tier.
var MembershipsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "membership",
		Name:      "created_total",
		Help:      "Total number of memberships created.",
	},
	[]string{"plan"},
)

// MachineHeartbeatStale counts machines found offline during availability checks.
var MachineHeartbeatStale = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "machine",
		Name:      "heartbeat_stale_total",
		Help:      "Total number of times a machine was found to have a stale heartbeat.",
	},
	[]string{"machine_id"},
)

// OpsAlertsSentTotal counts Slack ops alerts sent by reason.
var OpsAlertsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "parkcore",
		Subsystem: "ops",
		Name:      "alerts_sent_total",
		Help:      "Total number of operational Slack alerts sent.",
	},
	[]string{"reason"},
)

// All returns all parkcore-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		PalletOccupancyChanges,
		BookingsCreatedTotal,
		BookingsCompletedTotal,
		OTPVerificationsTotal,
		MembershipsCreatedTotal,
		MachineHeartbeatStale,
		OpsAlertsSentTotal,
	}
}
