package partition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newRecord(replicas []NodeID, origin, target NodeID) *Record {
	return &Record{
		mu:       newTimedMutex(),
		replicas: replicas,
		origin:   origin,
		target:   target,
	}
}

// Scenario 1: master-on-self, no acting master elsewhere.
func TestBestNodeMasterOnSelf(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 0)
	require.True(t, IsWorkingMaster(p, 1))
	require.Equal(t, NodeID(1), BestNode(p, 1, false))
	require.Equal(t, NodeID(1), BestNode(p, 1, true))
}

// Scenario 2: eventual master with acting master elsewhere.
func TestBestNodeEventualMasterActingElsewhere(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 9, 0)
	require.False(t, IsWorkingMaster(p, 1))
	require.True(t, IsEventualMaster(p, 1))
	require.Equal(t, NodeID(9), BestNode(p, 1, false))
	require.Equal(t, NodeID(9), ProxyeeRedirect(p, 1))
}

// Scenario 3: acting master (emigrating to target).
func TestBestNodeActingMaster(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 5)
	require.True(t, IsActingMaster(p))
	require.True(t, IsWorkingMaster(p, 2)) // self=2 is not even eventual master
	require.Equal(t, NodeID(2), BestNode(p, 2, false))
}

// Scenario 4: prole not immigrating may serve reads.
func TestBestNodeProleNotImmigrating(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 0)
	require.True(t, IsProle(p, 2))
	require.Equal(t, NodeID(2), BestNode(p, 2, true))
	require.Equal(t, NodeID(1), BestNode(p, 2, false)) // writes still go to master
}

// Scenario 4b: prole immigrating (origin set) must not serve reads itself;
// the read falls back to the eventual master.
func TestBestNodeProleImmigrating(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 9, 0)
	require.Equal(t, NodeID(1), BestNode(p, 2, true))
}

// Scenario 5: non-replica falls back to eventual master.
func TestBestNodeNonReplica(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 0)
	require.Equal(t, -1, FindSelfIndex(p, 99))
	require.Equal(t, NodeID(1), BestNode(p, 99, false))
	require.Equal(t, NodeID(1), BestNode(p, 99, true))
}

func TestReplicaSelfIndexBoundedByReplicationFactor(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3, 4}, 0, 0)
	require.Equal(t, 2, ReplicaSelfIndex(p, 3, 4))
	require.Equal(t, -1, ReplicaSelfIndex(p, 4, 2)) // index 3 exceeds factor 2
}

func TestReplicaSelfIndexWorkingMasterViaTarget(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 5)
	require.Equal(t, 0, ReplicaSelfIndex(p, 2, 2))
}

func TestStateCharLegacy(t *testing.T) {
	p := newRecord(nil, 0, 0)
	p.mode = LegacyClustering
	p.state = StateDesync
	require.Equal(t, byte('D'), StateChar(p, 1))
}

func TestStateCharModern(t *testing.T) {
	p := newRecord([]NodeID{1, 2}, 0, 0)
	p.mode = ModernClustering
	require.Equal(t, byte('S'), StateChar(p, 1))

	p.pendingImmigrations = 1
	require.Equal(t, byte('D'), StateChar(p, 1))

	p2 := newRecord([]NodeID{2, 3}, 0, 0)
	p2.mode = ModernClustering
	p2.version = NullVersion
	require.Equal(t, byte('A'), StateChar(p2, 1))

	p2.version = NewVersion([]byte{1})
	require.Equal(t, byte('Z'), StateChar(p2, 1))
}

func TestProleReplicaReturnsZeroForMaster(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 0)
	require.Equal(t, NodeID(0), ProleReplica(p, 1))
}

func TestProleReplicaReturnsBestNodeForNonMaster(t *testing.T) {
	p := newRecord([]NodeID{1, 2, 3}, 0, 0)
	require.Equal(t, NodeID(2), ProleReplica(p, 2))
}
