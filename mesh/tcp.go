package mesh

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/splinter-rs/splinter-go/wire"
)

// tcpConnection adapts a net.Conn, framed with wire's 4-byte length prefix,
// to the Connection interface. Reads are pumped by a background goroutine
// into a bounded in-memory queue so that Recv itself never blocks; this is
// the concession this package makes in place of OS-level readiness
// notification (see the package doc).
type tcpConnection struct {
	conn   net.Conn
	remote string

	mu       sync.Mutex
	readBuf  bytes.Buffer
	inbox    chan []byte
	closeErr error
	closed   chan struct{}
}

// DialTCP opens an outbound connection to endpoint (host:port).
func DialTCP(endpoint string) (Connection, error) {
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return nil, err
	}
	return newTCPConnection(conn), nil
}

func newTCPConnection(conn net.Conn) *tcpConnection {
	c := &tcpConnection{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		inbox:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go c.pump()
	return c
}

// WrapTCP adapts an already-accepted net.Conn (server side).
func WrapTCP(conn net.Conn) Connection {
	return newTCPConnection(conn)
}

func (c *tcpConnection) pump() {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.readBuf.Write(buf[:n])
			for {
				frame, consumed, ok := wire.ReadLengthPrefixed(c.readBuf.Bytes())
				if !ok {
					break
				}
				cp := append([]byte(nil), frame...)
				rest := append([]byte(nil), c.readBuf.Bytes()[consumed:]...)
				c.readBuf.Reset()
				c.readBuf.Write(rest)
				c.mu.Unlock()
				select {
				case c.inbox <- cp:
				case <-c.closed:
					return
				}
				c.mu.Lock()
			}
			c.mu.Unlock()
		}
		if err != nil {
			c.mu.Lock()
			c.closeErr = err
			c.mu.Unlock()
			close(c.closed)
			return
		}
	}
}

// Send writes the framed payload with a blocking conn.Write; it does not
// return ErrWouldBlock.
func (c *tcpConnection) Send(payload []byte) error {
	framed := wire.LengthPrefix(payload)
	_, err := c.conn.Write(framed)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrDisconnected
		}
		return err
	}
	return nil
}

func (c *tcpConnection) Recv() ([]byte, error) {
	select {
	case frame := <-c.inbox:
		return frame, nil
	default:
	}
	select {
	case <-c.closed:
		return nil, ErrDisconnected
	default:
		return nil, ErrWouldBlock
	}
}

func (c *tcpConnection) Close() error {
	return c.conn.Close()
}

func (c *tcpConnection) RemoteEndpoint() string { return c.remote }
