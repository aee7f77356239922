package partition

import (
	"time"

	"github.com/cubefs/partitionkv/indextree"
)

// Reservation pins a partition's tree(s) against concurrent
// deletion/replacement for the duration of one read, write, migration,
// query, or cross-datacenter read. Exactly one Release call must follow
// every successful reservation — see Release.
type Reservation struct {
	NS *Namespace
	P  *Record

	Tree    *indextree.Tree
	SubTree *indextree.Tree

	ClusterKey      uint64
	RejectReplWrite bool
	DuplNodes       []NodeID

	released bool
}

// ReserveRead reserves pid for a read. If this node is not the node that
// should serve the read, it returns ErrNotOwner and chosenNode names who
// is; the caller is expected to proxy there.
func (ns *Namespace) ReserveRead(pid uint32) (rsv *Reservation, chosenNode NodeID, clusterKey uint64, err error) {
	return ns.reserveReadWrite(pid, true)
}

// ReserveWrite is ReserveRead for writes.
func (ns *Namespace) ReserveWrite(pid uint32) (rsv *Reservation, chosenNode NodeID, clusterKey uint64, err error) {
	return ns.reserveReadWrite(pid, false)
}

func (ns *Namespace) reserveReadWrite(pid uint32, isRead bool) (rsv *Reservation, chosenNode NodeID, clusterKey uint64, err error) {
	p := ns.Partition(pid)
	if p == nil {
		return nil, 0, 0, ErrNoSuchPartition
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	chosenNode = BestNode(p, ns.Self, isRead)
	clusterKey = p.clusterKey

	if chosenNode != ns.Self {
		return nil, chosenNode, clusterKey, ErrNotOwner
	}

	rsv = &Reservation{}
	if err := reserveLockfree(p, ns, rsv); err != nil {
		return nil, chosenNode, clusterKey, err
	}
	return rsv, chosenNode, clusterKey, nil
}

// ReserveMigrate reserves pid unconditionally for the migration sender,
// which always reserves locally regardless of role.
func (ns *Namespace) ReserveMigrate(pid uint32) (*Reservation, NodeID, error) {
	p := ns.Partition(pid)
	if p == nil {
		return nil, 0, ErrNoSuchPartition
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rsv := &Reservation{}
	if err := reserveLockfree(p, ns, rsv); err != nil {
		return nil, 0, err
	}
	return rsv, ns.Self, nil
}

// ReserveMigrateTimeout is ReserveMigrate, but gives up with ErrTimeout if
// the partition lock cannot be acquired within timeout. It is the only
// bounded-wait reservation operation.
func (ns *Namespace) ReserveMigrateTimeout(pid uint32, timeout time.Duration) (*Reservation, NodeID, error) {
	p := ns.Partition(pid)
	if p == nil {
		return nil, 0, ErrNoSuchPartition
	}

	if !p.mu.TryLockTimeout(timeout) {
		return nil, 0, ErrTimeout
	}
	defer p.mu.Unlock()

	rsv := &Reservation{}
	if err := reserveLockfree(p, ns, rsv); err != nil {
		return nil, 0, err
	}
	return rsv, ns.Self, nil
}

// ReserveQuery reserves pid for a query, which requires master role. It
// behaves like ReserveWrite but reports failure as ErrNotOwner without a
// usable chosen node, since query callers don't proxy per-partition.
func (ns *Namespace) ReserveQuery(pid uint32) (*Reservation, error) {
	rsv, _, _, err := ns.reserveReadWrite(pid, false)
	if err != nil {
		return nil, err
	}
	return rsv, nil
}

// PrereserveQuery attempts ReserveQuery for every partition in the
// namespace, sequentially. It returns, for each pid, whether it could be
// queried, and the reservation array (nil entries where it could not).
// This is a best-effort per-partition set, not an atomic cross-partition
// snapshot — see §5 of SPEC_FULL.md.
func (ns *Namespace) PrereserveQuery() (queryable [NPartitions]bool, rsvs [NPartitions]*Reservation) {
	for pid := uint32(0); pid < NPartitions; pid++ {
		if ns.Partition(pid) == nil {
			continue
		}
		rsv, err := ns.ReserveQuery(pid)
		if err != nil {
			queryable[pid] = false
			continue
		}
		queryable[pid] = true
		rsvs[pid] = rsv
	}
	return
}

// ReserveXDRRead reserves pid for a cross-datacenter replication read,
// which may read from any node that has data, including zombies. It
// succeeds iff the partition's version is non-null.
func (ns *Namespace) ReserveXDRRead(pid uint32) (*Reservation, error) {
	p := ns.Partition(pid)
	if p == nil {
		return nil, ErrNoSuchPartition
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.version.IsNull() {
		return nil, ErrNoData
	}

	rsv := &Reservation{}
	if err := reserveLockfree(p, ns, rsv); err != nil {
		return nil, err
	}
	return rsv, nil
}

// CopyReservation duplicates src's scalar fields and duplicate-node list
// into dst. It deliberately does NOT adjust refcounts: the caller remains
// responsible for exactly one Release of the underlying reservation. This
// exists to support hand-off patterns where the source drops its own
// responsibility to release — see §9 of SPEC_FULL.md. Prefer reserving
// again over copying when in doubt.
func CopyReservation(dst, src *Reservation) {
	dst.NS = src.NS
	dst.P = src.P
	dst.Tree = src.Tree
	dst.SubTree = src.SubTree
	dst.ClusterKey = src.ClusterKey
	dst.RejectReplWrite = src.RejectReplWrite
	dst.DuplNodes = append(dst.DuplNodes[:0], src.DuplNodes...)
	dst.released = false
}

// Release drops the tree refcounts a successful reservation holds. It
// must be called exactly once per successful reservation; a second call
// returns ErrDoubleRelease instead of corrupting the refcount, which the
// source treats as an unchecked programmer error.
func Release(rsv *Reservation) error {
	if rsv.released {
		return ErrDoubleRelease
	}
	rsv.released = true

	indextree.Release(rsv.Tree)
	if rsv.NS != nil && rsv.NS.LDTEnabled {
		indextree.Release(rsv.SubTree)
	}
	return nil
}

// reserveLockfree does the actual reservation work. Called under p.lock.
func reserveLockfree(p *Record, ns *Namespace, rsv *Reservation) error {
	if err := indextree.Reserve(p.vp); err != nil {
		return err
	}
	if ns.LDTEnabled {
		if err := indextree.Reserve(p.subVp); err != nil {
			indextree.Release(p.vp)
			return err
		}
	}

	rsv.NS = ns
	rsv.P = p
	rsv.Tree = p.vp
	rsv.SubTree = p.subVp
	rsv.ClusterKey = p.clusterKey

	switch p.mode {
	case ModernClustering:
		// FIXME - this is equivalent, but is it correct? The legacy form
		// (p.state == StateAbsent) may permit reject in a wider set of
		// transient states. Left open per §9 of SPEC_FULL.md — verifying
		// this requires the balance engine's transition table, which is
		// out of scope for this core.
		rsv.RejectReplWrite = p.version.IsNull()
	default:
		rsv.RejectReplWrite = p.state == StateAbsent
	}

	rsv.DuplNodes = append(rsv.DuplNodes[:0], p.dupls...)
	return nil
}
