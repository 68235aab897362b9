// Package mesh implements the reactor-driven connection multiplexer (spec
// §4.1, component C1): a single goroutine owns every authenticated
// transport connection, delivers inbound frames to a bounded queue, and
// drains per-connection outbound queues with writable-readiness
// backpressure.
//
// A true mio-style edge-triggered epoll loop needs a raw OS descriptor and
// either cgo or golang.org/x/sys/unix epoll bindings; this package instead
// drives the same algorithm (single owner goroutine, one outstanding
// cached payload per connection, skip-the-read-when-full backpressure)
// from a single-threaded scan-and-wait loop woken by a dirty channel
// rather than OS readiness events. See DESIGN.md.
package mesh

import (
	"errors"
	"fmt"
)

// ErrWouldBlock is returned by Connection.Send/Recv when the operation
// cannot complete without blocking.
var ErrWouldBlock = errors.New("mesh: would block")

// ErrDisconnected is returned once the remote end has closed the
// connection.
var ErrDisconnected = errors.New("mesh: disconnected")

// ProtocolError wraps a framing/decoding failure that is local to one
// connection and must not abort the reactor loop.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("mesh: protocol error: %s", e.Msg) }

// Connection is a single authenticated, bidirectional transport. Recv is
// non-blocking: it returns ErrWouldBlock rather than parking the calling
// goroutine. Send is non-blocking on the ZMQ transport; the TCP transport's
// Send is a blocking write that never returns ErrWouldBlock.
type Connection interface {
	// Send writes payload. Returns nil on success, ErrWouldBlock if a
	// non-blocking transport's buffer is full, ErrDisconnected if the peer
	// is gone, a *ProtocolError for a local framing failure, or an I/O
	// error.
	Send(payload []byte) error

	// Recv attempts to read one complete frame without blocking. Returns
	// ErrWouldBlock if no full frame is yet available.
	Recv() ([]byte, error)

	// Close releases any OS resources held by the connection.
	Close() error

	// RemoteEndpoint identifies the peer for logging/diagnostics.
	RemoteEndpoint() string
}
