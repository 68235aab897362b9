package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MeshConnections.Set(3)
	m.AdminProposalsSubmitted.WithLabelValues("create", "committed").Inc()
	m.ScabbardBatchesSubmitted.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
