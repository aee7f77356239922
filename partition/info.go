package partition

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/cubefs/partitionkv/indextree"
)

// This file is the Go counterpart of as_partition_getinfo_str,
// as_partition_get_replicas_master_str, as_partition_get_replicas_all_str,
// as_partition_get_replicas_prole_str and as_partition_get_replica_stats in
// original_source/as/src/fabric/partition.c. Field order and delimiters
// match the original exactly; only the buffer type differs (strings.Builder
// in place of cf_dyn_buf, since the pack has no dynamic-buffer library and
// every pack formatter builds strings this way).

// PartitionInfoHeader is the column header line for PartitionInfoString's
// output, unchanged from the source format.
const PartitionInfoHeader = "namespace:partition:state:replica:n_dupl:" +
	"origin:target:emigrates:immigrates:records:sub_records:tombstones:" +
	"ldt_version:version:final_version"

// PartitionInfoString renders one row per partition for ns, in pid order,
// rows separated by ';' (no trailing ';'): "name:pid:state:replica:n_dupl:
// origin:target:emigrates:immigrates:records:sub_records:tombstones:
// ldt_version:version:final_version". replica is self's replica index, or the replica count if
// self is not a replica (matching the source's "n_replicas when not found"
// quirk). ldt_version is hex-formatted, matching cf_dyn_buf_append_uint64_x.
func (ns *Namespace) PartitionInfoString(name string) string {
	var b strings.Builder

	for pid := uint32(0); pid < NPartitions; pid++ {
		p := ns.Partition(pid)
		if p == nil {
			continue
		}

		p.mu.Lock()

		stateC := StateChar(p, ns.Self)
		selfN := FindSelfIndex(p, ns.Self)
		replicaField := selfN
		if selfN < 0 {
			replicaField = len(p.replicas)
		}

		subRecords := 0
		if ns.LDTEnabled {
			subRecords = indextree.Size(p.subVp)
		}

		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(pid), 10))
		b.WriteByte(':')
		b.WriteByte(stateC)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(replicaField))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(p.dupls)))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(p.origin), 16))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(p.target), 16))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.pendingEmigrations))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.pendingImmigrations))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(indextree.Size(p.vp)))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(subRecords))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(p.nTombstones, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(p.ldtVersion, 16))
		b.WriteByte(':')
		b.WriteString(p.version.String())
		b.WriteByte(':')
		b.WriteString(p.finalVersion.String())
		b.WriteByte(';')

		p.mu.Unlock()
	}

	return strings.TrimSuffix(b.String(), ";")
}

// MasterMapString renders "name:<b64 master map>" for ns, matching
// as_partition_get_replicas_master_str.
func (ns *Namespace) MasterMapString(name string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(ns.B64Map(0))
	return b.String()
}

// AllReplicasMapString renders "name:<replication_factor>,<b64 map 0>,
// <b64 map 1>,...", matching as_partition_get_replicas_all_str.
func (ns *Namespace) AllReplicasMapString(name string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(uint64(ns.ReplicationFactor), 10))
	for i := range ns.ReplicaMaps {
		b.WriteByte(',')
		b.WriteString(ns.B64Map(i))
	}
	return b.String()
}

// ProleMapString renders "name:<b64 prole bitmap>" where the bitmap marks
// every partition ProleReplica names self as the best prole read target
// for, matching as_partition_get_replicas_prole_str. Unlike the other two
// map strings this is NOT backed by a precomputed ClientReplicaMap: the
// source recomputes it on demand from partition_getreplica_prole, and this
// core does the same.
func (ns *Namespace) ProleMapString(name string) string {
	var bitmap [BitmapBytes]byte
	for pid := uint32(0); pid < NPartitions; pid++ {
		p := ns.Partition(pid)
		if p == nil {
			continue
		}
		p.mu.Lock()
		prole := ProleReplica(p, ns.Self)
		p.mu.Unlock()
		if prole == ns.Self {
			bitmap[pid>>3] |= 0x80 >> (pid & 7)
		}
	}

	b64 := make([]byte, b64MapBytes)
	base64.StdEncoding.Encode(b64, bitmap[:])

	var out strings.Builder
	out.WriteString(name)
	out.WriteByte(':')
	out.Write(b64)
	return out.String()
}

// ReplicaStats are the per-role object counts behind as_partition_get_replica_stats.
type ReplicaStats struct {
	NMasterObjects, NMasterSubObjects, NMasterTombstones       uint64
	NProleObjects, NProleSubObjects, NProleTombstones          uint64
	NNonReplicaObjects, NNonReplicaSubObjects, NNonReplicaTomb uint64
}

// GetReplicaStats walks every partition in ns, under each partition's
// lock, and accumulates object/tombstone counts bucketed by whether self
// is the working master, a non-master replica, or not a replica at all.
// Matches as_partition_get_replica_stats / accumulate_replica_stats.
func (ns *Namespace) GetReplicaStats() ReplicaStats {
	var stats ReplicaStats

	for pid := uint32(0); pid < NPartitions; pid++ {
		p := ns.Partition(pid)
		if p == nil {
			continue
		}

		p.mu.Lock()

		selfN := FindSelfIndex(p, ns.Self)
		isWorkingMaster := (selfN == 0 && !p.origin.IsSet()) || p.target.IsSet()

		switch {
		case isWorkingMaster:
			accumulateReplicaStats(p, ns.LDTEnabled, &stats.NMasterObjects, &stats.NMasterSubObjects, &stats.NMasterTombstones)
		case selfN >= 0:
			accumulateReplicaStats(p, ns.LDTEnabled, &stats.NProleObjects, &stats.NProleSubObjects, &stats.NProleTombstones)
		default:
			accumulateReplicaStats(p, ns.LDTEnabled, &stats.NNonReplicaObjects, &stats.NNonReplicaSubObjects, &stats.NNonReplicaTomb)
		}

		p.mu.Unlock()
	}

	return stats
}

func accumulateReplicaStats(p *Record, ldtEnabled bool, objects, subObjects, tombstones *uint64) {
	nTombstones := p.nTombstones
	size := uint64(indextree.Size(p.vp))

	var nObjects uint64
	if size > nTombstones {
		nObjects = size - nTombstones
	}

	*objects += nObjects
	if ldtEnabled {
		*subObjects += uint64(indextree.Size(p.subVp))
	}
	*tombstones += nTombstones
}
