package overlay

import "github.com/mcntech/stellar-core/metrics"

// peerMeters bundles the per-direction overlay meters. All of them are
// fire-and-forget: no engine control flow depends on marking them.
type peerMeters struct {
	messageRead  *metrics.Meter
	messageWrite *metrics.Meter
	byteRead     *metrics.Meter
	byteWrite    *metrics.Meter
	errorRead    *metrics.Meter
	errorWrite   *metrics.Meter
	timeoutRead  *metrics.Meter
	timeoutWrite *metrics.Meter
}

func newPeerMeters(r *metrics.Registry) *peerMeters {
	return &peerMeters{
		messageRead:  r.Meter("overlay.message.read"),
		messageWrite: r.Meter("overlay.message.write"),
		byteRead:     r.Meter("overlay.byte.read"),
		byteWrite:    r.Meter("overlay.byte.write"),
		errorRead:    r.Meter("overlay.error.read"),
		errorWrite:   r.Meter("overlay.error.write"),
		timeoutRead:  r.Meter("overlay.timeout.read"),
		timeoutWrite: r.Meter("overlay.timeout.write"),
	}
}
