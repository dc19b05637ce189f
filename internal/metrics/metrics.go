// Package metrics defines and registers the Prometheus metrics for the
// tickets platform core. It is the single source of truth for metric names,
// labels, and help strings. Metrics register with the default registry at
// import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tickets"

// ── Realtime metrics ─────────────────────────────────────────────────────────

// RealtimeConnectionsActive tracks currently open realtime connections.
// Label:
//   - namespace: the realtime namespace the connection attached to
var RealtimeConnectionsActive = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections_active",
		Help:      "Number of currently open realtime connections.",
	},
	[]string{"namespace"},
)

// RealtimeJoinsTotal counts room join decisions.
// Label:
//   - result: "success" or "failure"
var RealtimeJoinsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_joins_total",
		Help:      "Total number of room join requests, by authorization result.",
	},
	[]string{"result"},
)

// RealtimeBroadcastsTotal counts events fanned out to rooms.
// Label:
//   - namespace: the realtime namespace the event was broadcast in
var RealtimeBroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_broadcasts_total",
		Help:      "Total number of events broadcast to rooms, by namespace.",
	},
	[]string{"namespace"},
)

// RealtimeDroppedFramesTotal counts frames dropped because a connection's
// outbound buffer was full.
var RealtimeDroppedFramesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_frames_total",
		Help:      "Total number of outbound frames dropped on slow connections.",
	},
)

// ── Event bus metrics ────────────────────────────────────────────────────────

// BusPublishedTotal counts envelopes published to the backend.
var BusPublishedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_published_total",
		Help:      "Total number of envelopes published to the event bus.",
	},
)

// BusReceivedTotal counts envelopes the subscriber bridge decoded and
// forwarded to the broadcast server.
var BusReceivedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_received_total",
		Help:      "Total number of envelopes received from the event bus.",
	},
)

// BusDecodeErrorsTotal counts backend messages dropped as malformed.
var BusDecodeErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_decode_errors_total",
		Help:      "Total number of malformed bus messages dropped.",
	},
)
