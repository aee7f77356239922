// Package introspect exposes the plain-text info surface (partition/info.go's
// PartitionInfoString/MasterMapString/etc.) and a Prometheus gauge set
// over plain HTTP, grounded on server/httpserver.go's rpc.Router pattern
// and metrics/metric.go's package-level registry. Unlike the teacher's
// gRPC data-plane API, this surface is the introspection-only endpoint
// described in SPEC_FULL.md §6.6 and carries no request/response
// protobuf schema of its own.
package introspect

import "github.com/prometheus/client_golang/prometheus"

// Registry is this process's metrics registry, separate from any
// default global registry so embedding callers can choose whether to
// expose it.
var Registry = prometheus.NewRegistry()

var (
	queryablePartitions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "partitionkv",
		Name:      "queryable_partitions",
		Help:      "Number of partitions this node's master map currently advertises as queryable.",
	}, []string{"namespace"})

	masterPartitions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "partitionkv",
		Name:      "master_partitions",
		Help:      "Number of partitions this node is currently the working master for.",
	}, []string{"namespace"})

	outstandingReservations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "partitionkv",
		Name:      "replica_objects",
		Help:      "Object counts by replica role, per namespace.",
	}, []string{"namespace", "role"})
)

func init() {
	Registry.MustRegister(queryablePartitions, masterPartitions, outstandingReservations)
}
