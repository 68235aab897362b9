package mesh

import (
	"errors"
	"sync"
	"time"

	"github.com/splinter-rs/splinter-go/log"
)

// InboundFrame is a single payload delivered to the consumer, tagged with
// the connection id it arrived on.
type InboundFrame struct {
	ID      uint64
	Payload []byte
}

type connEntry struct {
	id       uint64
	conn     Connection
	outbound chan []byte

	// cache holds at most one payload that could not be sent immediately;
	// nil when empty. cacheGuard prevents re-registering writable interest
	// repeatedly while a payload is already cached (spec §4.1 step 2-3).
	cache      []byte
	cacheGuard bool
}

// Reactor is the single-threaded poll loop of spec §4.1 (component C1).
// The connection table is guarded by mu: Add and Remove change it from the
// calling goroutine, and Add and Send wake the Run loop through the dirty
// channel.
type Reactor struct {
	log log.Logger

	mu          sync.Mutex
	conns       map[uint64]*connEntry
	disconnected map[uint64]Connection
	nextID      uint64

	inbound chan InboundFrame
	dirty   chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewReactor constructs a Reactor whose inbound channel has capacity
// inboundDepth. When the inbound channel is full, step 4 of the algorithm
// is honored: reads are skipped rather than blocking the loop.
func NewReactor(inboundDepth int, logger log.Logger) *Reactor {
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Reactor{
		log:          logger,
		conns:        make(map[uint64]*connEntry),
		disconnected: make(map[uint64]Connection),
		inbound:      make(chan InboundFrame, inboundDepth),
		dirty:        make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Inbound returns the shared inbound channel. There is exactly one reader
// per channel per the invariants of §4.1.
func (r *Reactor) Inbound() <-chan InboundFrame { return r.inbound }

func (r *Reactor) wake() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

// Add registers a new connection and returns its id, disjoint from every
// other id and from every poll token space (trivially true here since we
// do not multiplex OS tokens).
func (r *Reactor) Add(conn Connection) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.conns[id] = &connEntry{id: id, conn: conn, outbound: make(chan []byte, 256)}
	r.wake()
	return id
}

// Remove deregisters a connection, returning it whether it was still
// active or had already moved to the disconnected side map.
func (r *Reactor) Remove(id uint64) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		delete(r.conns, id)
		return e.conn, true
	}
	if c, ok := r.disconnected[id]; ok {
		delete(r.disconnected, id)
		return c, true
	}
	return nil, false
}

// ErrUnknownConnection is returned by Send when id names no live
// connection.
var ErrUnknownConnection = errors.New("mesh: unknown connection id")

// Send enqueues payload for connection id. It never blocks the caller: if
// the per-connection outbound queue is full, it returns ErrWouldBlock.
func (r *Reactor) Send(id uint64, payload []byte) error {
	r.mu.Lock()
	e, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownConnection
	}
	select {
	case e.outbound <- payload:
		r.wake()
		return nil
	default:
		return ErrWouldBlock
	}
}

// Run drives the poll loop until Shutdown is called. It is meant to be
// called from its own goroutine; the loop itself is single-threaded, as
// required by spec §4.1/§5.
func (r *Reactor) Run() {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-r.dirty:
			r.tick()
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick performs one iteration of the algorithm in spec §4.1: drain
// outbound queues (flushing any cached payload first), then attempt reads
// honoring inbound backpressure, then retire any connection that failed.
func (r *Reactor) tick() {
	r.mu.Lock()
	entries := make([]*connEntry, 0, len(r.conns))
	for _, e := range r.conns {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		r.serviceOutbound(e)
		r.serviceInbound(e)
	}
}

func (r *Reactor) serviceOutbound(e *connEntry) {
	// Step 3: a cached payload takes priority over draining the queue —
	// only one outstanding cached payload is allowed per connection.
	if e.cache != nil {
		if err := e.conn.Send(e.cache); err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return
			}
			r.fail(e, err)
			return
		}
		e.cache = nil
		e.cacheGuard = false
	}

	select {
	case payload := <-e.outbound:
		if err := e.conn.Send(payload); err != nil {
			if errors.Is(err, ErrWouldBlock) {
				e.cache = payload
				e.cacheGuard = true
				return
			}
			r.fail(e, err)
			return
		}
	default:
	}
}

func (r *Reactor) serviceInbound(e *connEntry) {
	if len(r.inbound) == cap(r.inbound) {
		// Inbound channel is full: skip the read this tick, per step 4 —
		// backpressure is exerted on the peer, not the reactor.
		return
	}

	for {
		payload, err := e.conn.Recv()
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return
			}
			var perr *ProtocolError
			if errors.As(err, &perr) {
				r.log.Warn("protocol error", "connection", e.id, "err", perr.Error())
				return
			}
			r.fail(e, err)
			return
		}
		select {
		case r.inbound <- InboundFrame{ID: e.id, Payload: payload}:
		default:
			// Channel filled up between our capacity check and this send;
			// stop for this tick rather than blocking the reactor.
			return
		}
	}
}

func (r *Reactor) fail(e *connEntry, err error) {
	r.log.Info("connection failed", "connection", e.id, "err", err)
	r.mu.Lock()
	delete(r.conns, e.id)
	r.disconnected[e.id] = e.conn
	r.mu.Unlock()
}

// Shutdown stops Run and closes every live connection.
func (r *Reactor) Shutdown() {
	r.once.Do(func() { close(r.done) })
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.conns {
		_ = e.conn.Close()
	}
}
