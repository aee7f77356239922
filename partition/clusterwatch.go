package partition

import (
	"context"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"golang.org/x/sync/singleflight"
)

// ClusterWatch polls a ClusterObserver for epoch changes and, on a
// change, clears and rebuilds ns's client replica maps and drives a
// BalanceEngine through a rebalance. Grounded on
// shardserver/catalog/catalog.go's ticker-driven loop and
// shardserver/catalog/transport.go's singleflight-coalesced request:
// concurrent wake-ups (poll tick and an explicit Poke) collapse to one
// in-flight reconciliation instead of racing each other.
type ClusterWatch struct {
	ns       *Namespace
	observer ClusterObserver
	balancer BalanceEngine

	interval time.Duration
	single   singleflight.Group

	lastKey uint64

	done chan struct{}
}

// NewClusterWatch constructs a watch for ns, polling observer every
// interval.
func NewClusterWatch(ns *Namespace, observer ClusterObserver, balancer BalanceEngine, interval time.Duration) *ClusterWatch {
	return &ClusterWatch{
		ns:       ns,
		observer: observer,
		balancer: balancer,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run blocks, polling on a ticker until ctx is canceled or Stop is
// called.
func (w *ClusterWatch) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Poke(ctx)
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends a running Run loop.
func (w *ClusterWatch) Stop() {
	close(w.done)
}

// Poke checks the observer's current cluster key and, if it has
// changed, reconciles immediately instead of waiting for the next tick.
// Safe to call concurrently with Run; concurrent callers coalesce onto
// one reconciliation via singleflight.
func (w *ClusterWatch) Poke(ctx context.Context) {
	_, _, _ = w.single.Do("reconcile", func() (interface{}, error) {
		w.reconcile(ctx)
		return nil, nil
	})
}

func (w *ClusterWatch) reconcile(ctx context.Context) {
	span, ctx := trace.StartSpanFromContext(ctx, "")

	key := w.observer.ClusterKey()
	if key == w.lastKey {
		return
	}

	span.Infof("cluster key changed %d -> %d, rebalancing namespace", w.lastKey, key)

	w.ns.ClearReplicaMaps()

	if w.balancer != nil {
		w.balancer.Rebalance(w.ns, key)
	}

	for pid := uint32(0); pid < NPartitions; pid++ {
		p := w.ns.Partition(pid)
		if p == nil {
			continue
		}

		lk := p.Lock()
		lk.SetClusterKey(key)
		lk.Unlock()

		w.ns.UpdateReplicaMap(pid)
	}

	w.lastKey = key
}
