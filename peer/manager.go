package peer

import (
	"sort"
	"sync"
	"time"

	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/mesh"
)

// Dialer opens an outbound Connection to an endpoint; production code
// passes mesh.DialTCP or mesh.DialZMQ, tests pass a fake.
type Dialer func(endpoint string) (mesh.Connection, error)

type peerState struct {
	peerID     string
	endpoints  []string
	refCount   int
	connID     uint64
	connected  bool
	attempt    int
}

type unidentifiedState struct {
	refCount int
	connID   uint64
	endpoint string
}

// Manager is the peer manager of spec §4.2. It is safe for concurrent use.
type Manager struct {
	log    log.Logger
	dial   Dialer
	backoff Backoff
	reactor *mesh.Reactor
	authorizer Authorizer

	mu           sync.Mutex
	peers        map[string]*peerState
	unidentified map[uint64]*unidentifiedState
	connToPeer   map[uint64]string

	subs     map[SubscriberID]Subscriber
	nextSub  SubscriberID
}

// NewManager constructs a peer Manager. dial is used for outbound
// connections; reactor owns the underlying Mesh connections.
func NewManager(reactor *mesh.Reactor, dial Dialer, backoff Backoff, authorizer Authorizer, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Manager{
		log:          logger,
		dial:         dial,
		backoff:      backoff,
		reactor:      reactor,
		authorizer:   authorizer,
		peers:        make(map[string]*peerState),
		unidentified: make(map[uint64]*unidentifiedState),
		connToPeer:   make(map[uint64]string),
		subs:         make(map[SubscriberID]Subscriber),
	}
}

// PeerRef is a reference-counted handle on a logical peer. Go has no
// destructors, so callers must call Release explicitly when done — this is
// the idiomatic stand-in for the teacher's Drop-triggered decrement.
type PeerRef struct {
	mgr    *Manager
	peerID string
	once   sync.Once
}

// PeerID returns the identity this ref points to.
func (r *PeerRef) PeerID() string { return r.peerID }

// Release decrements the peer's reference count; at zero the peer is
// disconnected and forgotten. Safe to call at most meaningfully once —
// subsequent calls are no-ops.
func (r *PeerRef) Release() {
	r.once.Do(func() { r.mgr.release(r.peerID) })
}

// EndpointPeerRef is returned by AddUnidentifiedPeer; its identity is
// learned later via the authorization handshake.
type EndpointPeerRef struct {
	mgr      *Manager
	connID   uint64
	once     sync.Once
}

// Release decrements the unidentified peer's reference count.
func (r *EndpointPeerRef) Release() {
	r.once.Do(func() { r.mgr.releaseUnidentified(r.connID) })
}

// AddPeerRef returns a PeerRef for peerID, dialing endpoints[0] (falling
// back through the ordered list on failure) if this is the first
// reference. Subsequent calls only increment the refcount.
func (m *Manager) AddPeerRef(peerID string, endpoints []string) (*PeerRef, error) {
	m.mu.Lock()
	st, ok := m.peers[peerID]
	if ok {
		st.refCount++
		m.mu.Unlock()
		return &PeerRef{mgr: m, peerID: peerID}, nil
	}
	st = &peerState{peerID: peerID, endpoints: endpoints, refCount: 1}
	m.peers[peerID] = st
	m.mu.Unlock()

	m.dialAndTrack(st)
	return &PeerRef{mgr: m, peerID: peerID}, nil
}

func (m *Manager) dialAndTrack(st *peerState) {
	var lastErr error
	for _, ep := range st.endpoints {
		conn, err := m.dial(ep)
		if err != nil {
			lastErr = err
			continue
		}
		connID := m.reactor.Add(conn)
		m.mu.Lock()
		st.connID = connID
		st.connected = true
		m.connToPeer[connID] = st.peerID
		m.mu.Unlock()
		m.notify(Notification{Kind: NotificationConnected, PeerID: st.peerID})
		return
	}
	m.log.Warn("failed to connect to peer", "peer", st.peerID, "err", lastErr)
	m.notify(Notification{Kind: NotificationUnreachable, PeerID: st.peerID})
	go m.reconnectLoop(st)
}

func (m *Manager) reconnectLoop(st *peerState) {
	for {
		m.mu.Lock()
		_, stillWanted := m.peers[st.peerID]
		m.mu.Unlock()
		if !stillWanted {
			return
		}
		st.attempt++
		delay := m.backoff.Delay(st.attempt)
		m.notify(Notification{Kind: NotificationReconnectAttempt, PeerID: st.peerID, Attempt: st.attempt})
		time.Sleep(delay)

		for _, ep := range st.endpoints {
			conn, err := m.dial(ep)
			if err != nil {
				continue
			}
			connID := m.reactor.Add(conn)
			m.mu.Lock()
			st.connID = connID
			st.connected = true
			st.attempt = 0
			m.connToPeer[connID] = st.peerID
			m.mu.Unlock()
			m.notify(Notification{Kind: NotificationConnected, PeerID: st.peerID})
			return
		}
	}
}

// AddUnidentifiedPeer registers endpoint without a known identity; it will
// be promoted to a regular peer once the authorization handshake learns
// its identity.
func (m *Manager) AddUnidentifiedPeer(endpoint string) (*EndpointPeerRef, error) {
	conn, err := m.dial(endpoint)
	if err != nil {
		return nil, err
	}
	connID := m.reactor.Add(conn)

	m.mu.Lock()
	m.unidentified[connID] = &unidentifiedState{refCount: 1, connID: connID, endpoint: endpoint}
	m.mu.Unlock()

	if m.authorizer != nil {
		m.authorizer.Authorize(conn, connID, func(result AuthResult) {
			m.onAuthorized(connID, endpoint, result)
		})
	}
	return &EndpointPeerRef{mgr: m, connID: connID}, nil
}

func (m *Manager) onAuthorized(connID uint64, endpoint string, result AuthResult) {
	if !result.Authorized {
		m.log.Info("connection failed authorization", "connection", connID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.unidentified[connID]; !ok {
		return
	}
	delete(m.unidentified, connID)
	st, exists := m.peers[result.Identity]
	if !exists {
		st = &peerState{peerID: result.Identity, endpoints: []string{endpoint}, refCount: 1}
		m.peers[result.Identity] = st
	} else {
		st.refCount++
	}
	st.connID = connID
	st.connected = true
	m.connToPeer[connID] = result.Identity
}

func (m *Manager) release(peerID string) {
	m.mu.Lock()
	st, ok := m.peers[peerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	st.refCount--
	if st.refCount > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.peers, peerID)
	connID := st.connID
	connected := st.connected
	delete(m.connToPeer, connID)
	m.mu.Unlock()

	if connected {
		if conn, ok := m.reactor.Remove(connID); ok {
			_ = conn.Close()
		}
		m.notify(Notification{Kind: NotificationDisconnected, PeerID: peerID})
	}
}

func (m *Manager) releaseUnidentified(connID uint64) {
	m.mu.Lock()
	st, ok := m.unidentified[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	st.refCount--
	if st.refCount > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.unidentified, connID)
	m.mu.Unlock()

	if conn, ok := m.reactor.Remove(connID); ok {
		_ = conn.Close()
	}
}

// ListPeers returns every identified peer id, sorted.
func (m *Manager) ListPeers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.peers))
	for id := range m.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ListUnreferencedPeers returns peer ids whose connection attempt failed
// and remains unreachable (no live connection) but is still referenced.
func (m *Manager) ListUnreferencedPeers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0)
	for id, st := range m.peers {
		if !st.connected {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ConnectionIDs returns the connection id of every connected peer, keyed by
// peer id.
func (m *Manager) ConnectionIDs() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.peers))
	for id, st := range m.peers {
		if st.connected {
			out[id] = st.connID
		}
	}
	return out
}

// PeerIDForConnection is the inverse lookup used by PeerLookup (C9).
func (m *Manager) PeerIDForConnection(connID uint64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.connToPeer[connID]
	return id, ok
}

// SubscribeSender registers ch to receive every future Notification.
func (m *Manager) SubscribeSender(ch Subscriber) SubscriberID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	return id
}

// Unsubscribe removes a previously registered subscriber.
func (m *Manager) Unsubscribe(id SubscriberID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

func (m *Manager) notify(n Notification) {
	m.mu.Lock()
	subs := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()
	for _, s := range subs {
		select {
		case s <- n:
		default:
		}
	}
}

// Shutdown sends a NotificationShutdown to every subscriber; it does not
// disconnect or remove any peer.
func (m *Manager) Shutdown() {
	m.notify(Notification{Kind: NotificationShutdown})
}
