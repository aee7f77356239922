package partition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateReplicaMapsAllocatesOnePerCfgFactor(t *testing.T) {
	ns, _ := newTestNamespace(t)
	require.Len(t, ns.ReplicaMaps, int(ns.CfgReplicationFactor))
	for _, m := range ns.ReplicaMaps {
		require.Len(t, m.b64map, b64MapBytes)
	}
}

func TestUpdateReplicaMapSetsMasterBit(t *testing.T) {
	ns, _ := newTestNamespace(t)
	lk := ns.Partition(0).Lock()
	lk.SetReplicas([]NodeID{ns.Self, 2})
	lk.Unlock()

	changed := ns.UpdateReplicaMap(0)
	require.True(t, changed)
	require.True(t, ns.IsPartitionQueryable(0))

	// A second call against unchanged state is a no-op.
	require.False(t, ns.UpdateReplicaMap(0))
}

func TestUpdateReplicaMapSetsProleBitOnIndexOneMap(t *testing.T) {
	ns, _ := newTestNamespace(t)
	lk := ns.Partition(0).Lock()
	lk.SetReplicas([]NodeID{2, ns.Self})
	lk.Unlock()

	ns.UpdateReplicaMap(0)
	require.False(t, ns.IsPartitionQueryable(0))

	byteI := uint32(0) >> 3
	setMask := byte(0x80 >> (uint32(0) & 0x7))
	require.NotZero(t, ns.ReplicaMaps[1].bitmap[byteI]&setMask)
}

func TestUpdateReplicaMapClearsBitWhenNoLongerOwned(t *testing.T) {
	ns, _ := newTestNamespace(t)
	lk := ns.Partition(0).Lock()
	lk.SetReplicas([]NodeID{ns.Self, 2})
	lk.Unlock()
	ns.UpdateReplicaMap(0)
	require.True(t, ns.IsPartitionQueryable(0))

	lk = ns.Partition(0).Lock()
	lk.SetReplicas([]NodeID{2, 3})
	lk.Unlock()
	ns.UpdateReplicaMap(0)
	require.False(t, ns.IsPartitionQueryable(0))
}

func TestClearReplicaMapsZeroesEverything(t *testing.T) {
	ns, _ := newTestNamespace(t)
	lk := ns.Partition(0).Lock()
	lk.SetReplicas([]NodeID{ns.Self})
	lk.Unlock()
	ns.UpdateReplicaMap(0)
	require.True(t, ns.IsPartitionQueryable(0))

	ns.ClearReplicaMaps()
	require.False(t, ns.IsPartitionQueryable(0))
	for _, m := range ns.ReplicaMaps {
		for _, b := range m.bitmap {
			require.Zero(t, b)
		}
	}
}

func TestIsPartitionQueryableFalseWithoutMaps(t *testing.T) {
	ns := NewNamespace(1, ModernClustering, 2, 2, false)
	require.False(t, ns.IsPartitionQueryable(0))
}

func TestChunkedReencodingTouchesOnlyItsOwnChunk(t *testing.T) {
	ns, _ := newTestNamespace(t)

	lk := ns.Partition(100).Lock()
	lk.SetReplicas([]NodeID{ns.Self})
	lk.Unlock()
	lk2 := ns.Partition(4000).Lock()
	lk2.SetReplicas([]NodeID{ns.Self})
	lk2.Unlock()

	ns.UpdateReplicaMap(100)
	before := ns.B64Map(0)

	ns.UpdateReplicaMap(4000)
	after := ns.B64Map(0)

	require.NotEqual(t, before, after)

	// byte 100>>3=12 lives in chunk 12/3=4, covering b64 chars [16:20).
	require.Equal(t, before[:16], after[:16])
}
