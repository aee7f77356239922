package introspect

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cubefs/partitionkv/indextree"
	"github.com/cubefs/partitionkv/partition"
)

func newTestNamespace(t *testing.T) *partition.Namespace {
	t.Helper()
	ns := partition.NewNamespace(1, partition.ModernClustering, 2, 2, false)
	arena := indextree.NewArena()
	for pid := uint32(0); pid < partition.NPartitions; pid++ {
		require.NoError(t, ns.InitPartition(pid, &partition.ColdStartConfig{Arena: arena}, nil))
	}
	ns.CreateReplicaMaps()
	return ns
}

func TestRefreshMetricsCountsMasterAndQueryablePartitions(t *testing.T) {
	ns := newTestNamespace(t)

	lk := ns.Partition(0).Lock()
	lk.SetReplicas([]partition.NodeID{ns.Self, 2})
	lk.Unlock()
	ns.UpdateReplicaMap(0)

	s := NewServer(map[string]*partition.Namespace{"test": ns})
	s.refreshMetrics("test", ns)

	require.Equal(t, float64(1), testutil.ToFloat64(queryablePartitions.WithLabelValues("test")))
	require.Equal(t, float64(1), testutil.ToFloat64(masterPartitions.WithLabelValues("test")))
}

func TestRefreshMetricsReportsReplicaObjectCounts(t *testing.T) {
	ns := newTestNamespace(t)
	s := NewServer(map[string]*partition.Namespace{"test2": ns})
	s.refreshMetrics("test2", ns)

	require.GreaterOrEqual(t, testutil.ToFloat64(outstandingReservations.WithLabelValues("test2", "master")), float64(0))
}
