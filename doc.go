/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# PartitionKV: per-node partition state and reservation core

PartitionKV is the part of a sharded, replicated key-value store that runs
on every node and answers three questions for every partition it knows
about:

  - who is responsible for this partition right now (master, acting
    master, or prole)?

  - is it safe for me to pin this partition's data tree for the duration
    of a read, write, migration, query, or cross-datacenter read?

  - which partitions do I currently serve, so clients can be told without
    asking?

## Data Model

* Namespace, an independent keyspace with its own replication factor and a
fixed-size partition table.

* Partition, one of a namespace's fixed shards. Every partition has a
replica list (element 0 is the eventual master), an origin/target pair
describing migrations in flight, a cluster key epoch, and an owning
reference to its data tree.

* Reservation, a short-lived handle that pins a partition's tree via a
refcount for the lifetime of one operation.

* Client replica map, a namespace-wide bitmap (one per replica index)
telling clients which partitions this node plays that role for, kept in
sync incrementally and published Base64-encoded.

## Architecture

This repository implements the partition/reservation core only. It
consumes, but does not implement, three collaborators: the cluster
membership layer that assigns replica lists and cluster keys, the
partition balance engine that drives migrations, and the index tree that
actually stores records. A minimal reference index tree is included so the
core can be exercised end to end (package indextree); it is not meant to
be a production storage engine.

## Building Blocks

* github.com/cubefs/cubefs/blobstore (logging, tracing, error wrapping,
HTTP routing, config loading)
* Prometheus
* golang.org/x/sync (singleflight)

*/
package partitionkv
