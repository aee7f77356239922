package partition

import "errors"

var (
	// ErrNotOwner is returned by reserve_read/reserve_write when this node
	// is not the best node for the partition. The caller should proxy the
	// request to the returned chosen node.
	ErrNotOwner = errors.New("partition: this node is not the owner, proxy to chosen node")

	// ErrTimeout is returned by ReserveMigrateTimeout when the partition
	// lock could not be acquired within the budget. The caller should
	// abort this migration attempt and retry later.
	ErrTimeout = errors.New("partition: timed out acquiring partition lock")

	// ErrNoData is returned by ReserveXDRRead when the partition has no
	// version (no data). The caller should skip this node and try another.
	ErrNoData = errors.New("partition: no data for cross-datacenter read")

	// ErrNoSuchPartition is returned when a partition id has not been
	// initialized via Namespace.InitPartition.
	ErrNoSuchPartition = errors.New("partition: no such partition")

	// ErrDoubleRelease indicates a reservation was released more than
	// once. The contract requires exactly one release per reservation;
	// the source treats a violation as an unchecked programmer error,
	// but this core detects and reports the common case instead of
	// silently double-decrementing a refcount.
	ErrDoubleRelease = errors.New("partition: reservation released more than once")
)
