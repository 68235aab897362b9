package mesh

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// zmqConnection adapts a ZeroMQ DEALER socket to the Connection interface,
// grounded on the teacher's networking/zmq4 transport: an alternate,
// message-oriented Mesh transport alongside the default length-prefixed
// TCP transport in tcp.go.
type zmqConnection struct {
	sock   *zmq.Socket
	remote string
}

// DialZMQ opens a DEALER socket connected to endpoint (e.g. "tcp://host:port").
func DialZMQ(endpoint string) (Connection, error) {
	sock, err := zmq.NewSocket(zmq.DEALER)
	if err != nil {
		return nil, fmt.Errorf("mesh: zmq socket: %w", err)
	}
	if err := sock.SetLinger(0); err != nil {
		return nil, err
	}
	if err := sock.SetRcvtimeo(time.Duration(0)); err != nil {
		return nil, err
	}
	if err := sock.Connect(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("mesh: zmq connect %s: %w", endpoint, err)
	}
	return &zmqConnection{sock: sock, remote: endpoint}, nil
}

func (c *zmqConnection) Send(payload []byte) error {
	_, err := c.sock.SendBytes(payload, zmq.DONTWAIT)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return ErrWouldBlock
		}
		return err
	}
	return nil
}

func (c *zmqConnection) Recv() ([]byte, error) {
	b, err := c.sock.RecvBytes(zmq.DONTWAIT)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return nil, ErrWouldBlock
		}
		return nil, err
	}
	return b, nil
}

func (c *zmqConnection) Close() error {
	return c.sock.Close()
}

func (c *zmqConnection) RemoteEndpoint() string { return c.remote }
