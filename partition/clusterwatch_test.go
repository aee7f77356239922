package partition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeObserver struct {
	key uint64
}

func (f *fakeObserver) ClusterKey() uint64   { return f.key }
func (f *fakeObserver) IsNodeUp(NodeID) bool { return true }

type countingBalancer struct {
	calls int
}

func (b *countingBalancer) Rebalance(ns *Namespace, clusterKey uint64) {
	b.calls++
}

func TestClusterWatchPokeReconcilesOnKeyChange(t *testing.T) {
	ns, _ := newTestNamespace(t)
	lk := ns.Partition(0).Lock()
	lk.SetReplicas([]NodeID{ns.Self})
	lk.Unlock()
	ns.UpdateReplicaMap(0)
	require.True(t, ns.IsPartitionQueryable(0))

	observer := &fakeObserver{key: 7}
	balancer := &countingBalancer{}
	watch := NewClusterWatch(ns, observer, balancer, time.Hour)

	watch.Poke(context.Background())
	require.Equal(t, 1, balancer.calls)
	// reconcile rebuilds the map from scratch via UpdateReplicaMap, so the
	// bit self still owns comes back.
	require.True(t, ns.IsPartitionQueryable(0))

	// Same key again: no-op.
	watch.Poke(context.Background())
	require.Equal(t, 1, balancer.calls)
}

func TestClusterWatchPokeConcurrentCallsCoalesce(t *testing.T) {
	ns, _ := newTestNamespace(t)
	observer := &fakeObserver{key: 1}
	balancer := &countingBalancer{}
	watch := NewClusterWatch(ns, observer, balancer, time.Hour)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			watch.Poke(context.Background())
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	require.Equal(t, 1, balancer.calls)
}
