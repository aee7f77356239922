package partition

import (
	"encoding/base64"
	"sync"

	"github.com/cubefs/partitionkv/util"
)

// BitmapBytes is the size of one replica-index bitmap: one bit per
// partition, big-endian within each byte.
const BitmapBytes = (NPartitions + 7) / 8

// b64MapBytes is the size of the Base64 encoding of a full bitmap.
var b64MapBytes = base64.StdEncoding.EncodedLen(BitmapBytes)

// ClientReplicaMap is a namespace-wide, per-replica-index bitmap
// advertising which partitions this node plays that role for. Bit (pid&7)
// of byte (pid>>3) is set iff this node plays this role for pid. Readers
// read bytes without locking and tolerate a torn read mid-flip — see §4.4
// of SPEC_FULL.md for why that is an accepted tradeoff, not a bug.
type ClientReplicaMap struct {
	writeLock sync.Mutex

	bitmap [BitmapBytes]byte
	b64map []byte
}

// CreateReplicaMaps allocates and zeroes ns.ReplicaMaps, one map per
// replica index in [0, CfgReplicationFactor). Index 0 is the master map.
func (ns *Namespace) CreateReplicaMaps() {
	maps := make([]*ClientReplicaMap, ns.CfgReplicationFactor)
	for i := range maps {
		m := &ClientReplicaMap{b64map: make([]byte, b64MapBytes)}
		base64.StdEncoding.Encode(m.b64map, m.bitmap[:])
		maps[i] = m
	}
	ns.ReplicaMaps = maps
}

// ClearReplicaMaps zeroes every map's bitmap and re-encodes it. Used on a
// cluster-key change before the balance engine replays partition ownership
// via repeated Update calls.
func (ns *Namespace) ClearReplicaMaps() {
	for _, m := range ns.ReplicaMaps {
		m.writeLock.Lock()
		for i := range m.bitmap {
			m.bitmap[i] = 0
		}
		base64.StdEncoding.Encode(m.b64map, m.bitmap[:])
		m.writeLock.Unlock()
	}
}

// UpdateReplicaMap recomputes which replica role (if any) self plays for
// pid and flips the corresponding bit in every map that disagrees with the
// new answer, returning whether anything changed.
//
// The partition lock is held only for the read phase (to read
// replicas/origin/target); each bitmap's write_lock is then taken
// independently, outside the partition lock, per §5 of SPEC_FULL.md — a
// racing balance-engine update can cause a redundant second Update call,
// which is accepted as harmless.
func (ns *Namespace) UpdateReplicaMap(pid uint32) bool {
	p := ns.Partition(pid)
	if p == nil {
		return false
	}

	p.mu.Lock()
	r := ReplicaSelfIndex(p, ns.Self, ns.ReplicationFactor)
	p.mu.Unlock()

	byteI := pid >> 3
	byteChunk := byteI / 3
	chunkBitmapOffset := byteChunk * 3
	chunkB64Offset := byteChunk << 2

	bytesFromEnd := BitmapBytes - int(chunkBitmapOffset)
	inputSize := bytesFromEnd
	if inputSize > 3 {
		inputSize = 3
	}

	setMask := byte(0x80 >> (pid & 0x7))
	changed := false

	for i, m := range ns.ReplicaMaps {
		owned := r == i
		isSet := m.bitmap[byteI]&setMask != 0
		if owned == isSet {
			continue
		}

		m.writeLock.Lock()
		m.bitmap[byteI] ^= setMask
		base64.StdEncoding.Encode(
			m.b64map[chunkB64Offset:chunkB64Offset+4],
			m.bitmap[chunkBitmapOffset:int(chunkBitmapOffset)+inputSize],
		)
		m.writeLock.Unlock()

		changed = true
	}

	return changed
}

// IsPartitionQueryable reads the master map's bit for pid, lock-free.
func (ns *Namespace) IsPartitionQueryable(pid uint32) bool {
	if len(ns.ReplicaMaps) == 0 {
		return false
	}
	m := ns.ReplicaMaps[0]
	byteI := pid >> 3
	setMask := byte(0x80 >> (pid & 0x7))
	return m.bitmap[byteI]&setMask != 0
}

// B64Map returns a copy of the Base64-encoded bitmap for replica index i;
// later updates to the map do not change a string already returned.
func (ns *Namespace) B64Map(i int) string {
	return util.BytesToString(append([]byte(nil), ns.ReplicaMaps[i].b64map...))
}
