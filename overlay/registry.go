package overlay

import (
	"errors"
	"sync"

	"github.com/mcntech/stellar-core/metrics"
)

var (
	// ErrMaxPeers is returned when the manager is full.
	ErrMaxPeers = errors.New("overlay: max peers reached")

	// ErrPeerAlreadyRegistered is returned when adding a peer twice.
	ErrPeerAlreadyRegistered = errors.New("overlay: peer already registered")

	// ErrManagerClosed is returned when operating on a closed Manager.
	ErrManagerClosed = errors.New("overlay: manager closed")
)

// Registry is notified when a connection is torn down. Peers hold only this
// non-owning interface back to their registry; the registry holds the sole
// owning reference to each peer.
type Registry interface {
	OnDrop(p *Peer)
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func(p *Peer)

// OnDrop calls f.
func (f RegistryFunc) OnDrop(p *Peer) { f(p) }

// Manager tracks the live peer connections of this node, keyed by remote
// address, with a maximum capacity. It implements Registry: a dropping peer
// deregisters itself exactly once through OnDrop.
type Manager struct {
	mu       sync.RWMutex
	peers    map[string]*Peer
	maxPeers int
	closed   bool
}

// NewManager creates a Manager with the given maximum capacity.
func NewManager(maxPeers int) *Manager {
	if maxPeers <= 0 {
		maxPeers = DefaultConfig().MaxPeers
	}
	return &Manager{
		peers:    make(map[string]*Peer),
		maxPeers: maxPeers,
	}
}

// Add registers a peer. Returns ErrMaxPeers if the manager is full and
// ErrPeerAlreadyRegistered if a peer with the same remote address exists.
func (m *Manager) Add(p *Peer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if _, exists := m.peers[p.RemoteAddr()]; exists {
		return ErrPeerAlreadyRegistered
	}
	if len(m.peers) >= m.maxPeers {
		return ErrMaxPeers
	}
	m.peers[p.RemoteAddr()] = p
	metrics.PeersConnected.Set(int64(len(m.peers)))
	return nil
}

// OnDrop removes a dropped peer. Unknown peers are ignored: the drop path is
// idempotent and a peer may never have been registered.
func (m *Manager) OnDrop(p *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.peers[p.RemoteAddr()]; !exists {
		return
	}
	delete(m.peers, p.RemoteAddr())
	metrics.PeersConnected.Set(int64(len(m.peers)))
	metrics.PeersDropped.Inc()
}

// Peer returns the peer with the given remote address, or nil.
func (m *Manager) Peer(addr string) *Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peers[addr]
}

// Peers returns a snapshot of all live peers.
func (m *Manager) Peers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		list = append(list, p)
	}
	return list
}

// Len returns the number of live peers.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// Close marks the manager as closed and drops every remaining peer. Further
// Add calls return ErrManagerClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	remaining := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		remaining = append(remaining, p)
	}
	m.mu.Unlock()

	// Drop outside the lock: each drop re-enters OnDrop.
	for _, p := range remaining {
		p.Drop()
	}
}
