package partition

import (
	"fmt"

	"github.com/cubefs/partitionkv/indextree"
)

// NPartitions is the fixed number of partitions a namespace is divided
// into. This matches the canonical partition count of the system this
// core is modeled on.
const NPartitions = 4096

// Record is one partition's replication state, guarded by its own lock.
// All of its fields except id are owned by the (external) balance engine
// and must only be mutated through a LockedRecord obtained from Lock.
type Record struct {
	id uint32
	mu *timedMutex

	replicas []NodeID // element 0 is the eventual master

	origin NodeID // acting master elsewhere, or immigration source
	target NodeID // set when self is acting master, emigrating to target

	pendingEmigrations  int
	pendingImmigrations int

	dupls []NodeID // peers holding divergent copies

	clusterKey uint64

	mode         ClusteringMode
	state        State   // legacy encoding
	version      Version // modern encoding
	finalVersion Version

	nTombstones uint64
	ldtVersion  uint64 // current outgoing LDT sub-record version, hex-formatted in info strings

	vp    *indextree.Tree
	subVp *indextree.Tree // only when LDT is enabled
}

// ID returns the partition index this record belongs to.
func (p *Record) ID() uint32 {
	return p.id
}

// OtherReplicas lists every replica peer for p excluding self. Used by the
// (external) migration sender to know who else to notify; mirrors
// as_partition_get_other_replicas. Must be called under p's lock.
func (p *Record) OtherReplicas(self NodeID) []NodeID {
	others := make([]NodeID, 0, len(p.replicas))
	for _, n := range p.replicas {
		if n == self {
			continue
		}
		others = append(others, n)
	}
	return others
}

// Lock acquires the partition lock and returns a token that gates every
// mutating accessor. Callers must call Unlock on the returned token
// exactly once.
func (p *Record) Lock() *LockedRecord {
	p.mu.Lock()
	return &LockedRecord{p: p}
}

// LockedRecord is proof that its Record's lock is held. It is the only
// way to call a Record's mutating setters, which the source leaves to
// caller convention (every balance-engine mutation happens "under p.lock")
// — see DESIGN.md's Open Question resolution for why this core makes that
// convention a type instead.
type LockedRecord struct {
	p *Record
}

// Record returns the underlying record. Read-only predicate functions
// (predicates.go) accept a *Record directly because they are also called
// from inside the reservation manager's own critical sections, which
// already hold the lock without going through a fresh LockedRecord.
func (t *LockedRecord) Record() *Record {
	return t.p
}

// Unlock releases the partition lock. Must be called exactly once per Lock.
func (t *LockedRecord) Unlock() {
	t.p.mu.Unlock()
}

// SetReplicas installs a new replica list. Element 0 becomes the eventual
// master.
func (t *LockedRecord) SetReplicas(replicas []NodeID) {
	t.p.replicas = append(t.p.replicas[:0], replicas...)
}

// SetOrigin sets the acting-master-elsewhere / immigration-source field.
func (t *LockedRecord) SetOrigin(origin NodeID) {
	t.p.origin = origin
}

// SetTarget sets the emigration-destination field; non-zero makes self
// the acting master for this partition.
func (t *LockedRecord) SetTarget(target NodeID) {
	t.p.target = target
}

// SetMigrationCounts sets the pending emigration/immigration counters.
func (t *LockedRecord) SetMigrationCounts(emigrations, immigrations int) {
	t.p.pendingEmigrations = emigrations
	t.p.pendingImmigrations = immigrations
}

// SetDuplicates installs the duplicate-resolution peer set.
func (t *LockedRecord) SetDuplicates(dupls []NodeID) {
	t.p.dupls = append(t.p.dupls[:0], dupls...)
}

// SetClusterKey stamps the epoch that subsequent reservations will record.
func (t *LockedRecord) SetClusterKey(key uint64) {
	t.p.clusterKey = key
}

// SetState sets the legacy replication state. Only meaningful under
// LegacyClustering.
func (t *LockedRecord) SetState(s State) {
	t.p.state = s
}

// SetVersion sets the modern opaque data version. Only meaningful under
// ModernClustering.
func (t *LockedRecord) SetVersion(v Version) {
	t.p.version = v
}

// SetFinalVersion sets the version the balance engine intends once
// migrations settle.
func (t *LockedRecord) SetFinalVersion(v Version) {
	t.p.finalVersion = v
}

// SetTombstoneCount sets the delete-marker count backing replica stats.
func (t *LockedRecord) SetTombstoneCount(n uint64) {
	t.p.nTombstones = n
}

// SetLDTVersion sets the current outgoing LDT sub-record version, stamped
// by the (external) migration sender whenever it starts emigrating LDT
// sub-records for this partition.
func (t *LockedRecord) SetLDTVersion(v uint64) {
	t.p.ldtVersion = v
}

// SwapTree installs a new primary tree, dropping this record's strong
// reference to the old one. Reservations taken before the swap keep the
// old tree alive via their own refcount — see §5 of SPEC_FULL.md.
func (t *LockedRecord) SwapTree(vp *indextree.Tree) *indextree.Tree {
	old := t.p.vp
	t.p.vp = vp
	return old
}

// SwapSubTree is SwapTree for the LDT secondary tree.
func (t *LockedRecord) SwapSubTree(subVp *indextree.Tree) *indextree.Tree {
	old := t.p.subVp
	t.p.subVp = subVp
	return old
}

// Namespace owns one partition table plus the client-facing replica maps
// derived from it.
type Namespace struct {
	Self NodeID

	Mode                 ClusteringMode
	ReplicationFactor    uint32
	CfgReplicationFactor uint32
	LDTEnabled           bool

	partitions  [NPartitions]*Record
	ReplicaMaps []*ClientReplicaMap
}

// NewNamespace builds an empty namespace. Call InitPartition for each
// pid in [0, NPartitions) before using it (cold-start or warm-resume), and
// CreateReplicaMaps before serving any client replica-map reads.
func NewNamespace(self NodeID, mode ClusteringMode, replicationFactor, cfgReplicationFactor uint32, ldtEnabled bool) *Namespace {
	return &Namespace{
		Self:                 self,
		Mode:                 mode,
		ReplicationFactor:    replicationFactor,
		CfgReplicationFactor: cfgReplicationFactor,
		LDTEnabled:           ldtEnabled,
	}
}

// ColdStartConfig configures a freshly created partition's index tree(s).
type ColdStartConfig struct {
	Arena *indextree.Arena
}

// WarmResumeConfig configures a partition's index tree(s) rebuilt from a
// persisted root set.
type WarmResumeConfig struct {
	Arena *indextree.Arena
	Roots *indextree.RootStore
}

// InitPartition idempotently constructs the record for pid. Exactly one of
// cold or warm must be non-nil, selecting cold-start (fresh trees in the
// arena) or warm-resume (trees rebuilt from persisted roots).
func (ns *Namespace) InitPartition(pid uint32, cold *ColdStartConfig, warm *WarmResumeConfig) error {
	if pid >= NPartitions {
		return fmt.Errorf("partition: pid %d out of range", pid)
	}
	if ns.partitions[pid] != nil {
		return nil // idempotent
	}

	p := &Record{
		id:   pid,
		mu:   newTimedMutex(),
		mode: ns.Mode,
	}
	if ns.Mode == LegacyClustering {
		p.state = StateAbsent
	}

	switch {
	case cold != nil:
		vp, err := indextree.Create(cold.Arena)
		if err != nil {
			return err
		}
		p.vp = vp
		if ns.LDTEnabled {
			subVp, err := indextree.Create(cold.Arena)
			if err != nil {
				return err
			}
			p.subVp = subVp
		}
	case warm != nil:
		vp, err := indextree.Resume(warm.Arena, warm.Roots, rootKey(pid, false))
		if err != nil {
			return err
		}
		p.vp = vp
		if ns.LDTEnabled {
			subVp, err := indextree.Resume(warm.Arena, warm.Roots, rootKey(pid, true))
			if err != nil {
				return err
			}
			p.subVp = subVp
		}
	default:
		return fmt.Errorf("partition: InitPartition requires cold or warm config")
	}

	ns.partitions[pid] = p
	return nil
}

// Shutdown walks every initialized partition under its lock and persists
// its tree's root set for a later warm-resume. The lock is intentionally
// never released: the process is exiting.
func (ns *Namespace) Shutdown(roots *indextree.RootStore) error {
	for pid, p := range ns.partitions {
		if p == nil {
			continue
		}
		p.mu.Lock()

		if err := indextree.Shutdown(p.vp, roots, rootKey(uint32(pid), false)); err != nil {
			return err
		}
		if ns.LDTEnabled && p.subVp != nil {
			if err := indextree.Shutdown(p.subVp, roots, rootKey(uint32(pid), true)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Partition returns the record for pid, or nil if it has not been
// initialized.
func (ns *Namespace) Partition(pid uint32) *Record {
	if pid >= NPartitions {
		return nil
	}
	return ns.partitions[pid]
}

func rootKey(pid uint32, sub bool) string {
	if sub {
		return fmt.Sprintf("%d.sub", pid)
	}
	return fmt.Sprintf("%d", pid)
}
