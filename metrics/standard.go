package metrics

// Pre-defined metrics for the overlay node. All metrics live in
// DefaultRegistry so they are globally accessible without passing a registry
// around. The per-connection overlay meters (overlay.message.read and
// friends) are created on demand through DefaultRegistry.Meter.

var (
	// ---- Overlay metrics ----

	// PeersConnected tracks the current number of live peer connections.
	PeersConnected = DefaultRegistry.Gauge("overlay.peers")
	// PeersDropped counts connections torn down since startup.
	PeersDropped = DefaultRegistry.Counter("overlay.peers_dropped")
	// ConnectAttempts counts outbound connection attempts.
	ConnectAttempts = DefaultRegistry.Counter("overlay.connect_attempts")
	// ConnectFailures counts outbound connection attempts that failed.
	ConnectFailures = DefaultRegistry.Counter("overlay.connect_failures")
	// AcceptedConns counts inbound connections accepted by the listener.
	AcceptedConns = DefaultRegistry.Counter("overlay.accepted")

	// ---- Dispatch metrics ----

	// DispatchTime records sink dispatch duration in milliseconds.
	DispatchTime = DefaultRegistry.Histogram("overlay.dispatch_ms")
)
