package node

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/splinter-rs/splinter-go/mesh"
	"github.com/splinter-rs/splinter-go/wire"
)

func TestDispatch_RejectsUnsupportedProtocolVersion(t *testing.T) {
	cfg := testConfig(t)
	n, err := New(cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Shutdown() })

	envelope := wire.Envelope{
		ProtocolVersion: cfg.ProtocolVersionMax + 1,
		Type:            wire.MessageAdmin,
		Payload:         []byte("irrelevant"),
	}
	err = n.dispatch(mesh.InboundFrame{ID: 1, Payload: envelope.Encode()})
	require.NoError(t, err, "out-of-range frames are dropped, not errored")
}

func TestDispatch_AcceptsSupportedProtocolVersion(t *testing.T) {
	cfg := testConfig(t)
	n, err := New(cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Shutdown() })

	envelope := wire.Envelope{
		ProtocolVersion: wire.CurrentProtocolVersion,
		Type:            wire.MessageMesh,
		Payload:         nil,
	}
	err = n.dispatch(mesh.InboundFrame{ID: 1, Payload: envelope.Encode()})
	require.NoError(t, err)
}
