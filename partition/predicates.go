package partition

// This file is the Go counterpart of find_best_node, find_self_in_replicas,
// partition_get_replica_self_lockfree and partition_getstate_str in
// original_source/as/src/fabric/partition.c. Every predicate here is pure
// over its Record argument and must be evaluated under that record's lock —
// callers are expected to already hold it (they are invoked either from
// inside the reservation manager's own critical section, or by a caller
// that took the lock explicitly via Record.Lock and is reading through the
// LockedRecord).

// FindSelfIndex returns self's index in p's replica list, or -1 if self is
// not a replica.
func FindSelfIndex(p *Record, self NodeID) int {
	for i, n := range p.replicas {
		if n == self {
			return i
		}
	}
	return -1
}

// IsEventualMaster reports whether self is replicas[0].
func IsEventualMaster(p *Record, self NodeID) bool {
	return FindSelfIndex(p, self) == 0
}

// IsProle reports whether self is a non-master replica.
func IsProle(p *Record, self NodeID) bool {
	return FindSelfIndex(p, self) > 0
}

// IsActingMaster reports whether self is emigrating this partition to its
// eventual master (p.target is set).
func IsActingMaster(p *Record) bool {
	return p.target.IsSet()
}

// IsWorkingMaster reports whether self currently serves writes for p: it
// is either the eventual master with no acting master elsewhere, or it is
// the acting master.
func IsWorkingMaster(p *Record, self NodeID) bool {
	return (IsEventualMaster(p, self) && !p.origin.IsSet()) || IsActingMaster(p)
}

// BestNode answers "who should handle partition p" for a read or write.
// Must be called under p's lock.
func BestNode(p *Record, self NodeID, isRead bool) NodeID {
	selfN := FindSelfIndex(p, self)
	isEventualMaster := selfN == 0
	isProle := selfN > 0
	isActingMaster := p.target.IsSet()
	isWorkingMaster := (isEventualMaster && !p.origin.IsSet()) || isActingMaster

	if isWorkingMaster {
		return self
	}
	if isEventualMaster {
		return p.origin // acting master elsewhere
	}
	if isRead && isProle && !p.origin.IsSet() {
		return self // prole may serve reads when not immigrating
	}
	if len(p.replicas) == 0 {
		return 0
	}
	return p.replicas[0] // fallback to eventual master
}

// ReplicaSelfIndex is the predicate client replica maps are built from: the
// replica-role index self plays for p under ns's current replication
// factor, or -1 if self plays none. n_replicas can transiently exceed
// replication_factor during a rebalance; the bound below keeps a dying
// replica from advertising itself.
func ReplicaSelfIndex(p *Record, self NodeID, replicationFactor uint32) int {
	selfN := FindSelfIndex(p, self)
	isWorkingMaster := (selfN == 0 && !p.origin.IsSet()) || p.target.IsSet()

	if isWorkingMaster {
		return 0
	}
	if selfN > 0 && !p.origin.IsSet() && selfN < int(replicationFactor) {
		return selfN
	}
	return -1
}

// StateChar is the single-character replication-state code used by the
// info surface (§6.4). In legacy mode it dispatches on p.state; in modern
// mode it is derived from replica membership, pending immigrations and
// version null-ness.
func StateChar(p *Record, self NodeID) byte {
	if p.mode == LegacyClustering {
		return p.state.char()
	}

	selfN := FindSelfIndex(p, self)
	if selfN >= 0 {
		if p.pendingImmigrations == 0 {
			return 'S'
		}
		return 'D'
	}
	if p.version.IsNull() {
		return 'A'
	}
	return 'Z'
}

// WritableNode is the read-only query behind as_partition_writable_node:
// the node that should take writes for p.
func WritableNode(p *Record, self NodeID) NodeID {
	return BestNode(p, self, false)
}

// ProxyeeRedirect returns the acting master this node should proxy writes
// to, if self is the eventual master but not the working master; zero
// otherwise. Mirrors as_partition_proxyee_redirect.
func ProxyeeRedirect(p *Record, self NodeID) NodeID {
	if !IsEventualMaster(p, self) {
		return 0
	}
	return p.origin
}

// ProleReplica is the legacy "who is the prole for this partition, if
// anyone other than self" predicate behind the deprecated
// partition_getreplica_prole / the legacy prole-map text format (§6.4).
// It returns 0 if self is the master, otherwise the best node to read
// from as a prole.
func ProleReplica(p *Record, self NodeID) NodeID {
	best := BestNode(p, self, false)
	if best == self {
		return 0
	}
	return BestNode(p, self, true)
}
