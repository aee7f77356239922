// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/cubefs/partitionkv/indextree"
	"github.com/cubefs/partitionkv/introspect"
	"github.com/cubefs/partitionkv/partition"
	"github.com/cubefs/partitionkv/util"
)

// Config is the demo binary's configuration, loaded the way cmd/cmd.go
// loads server.Config: a flag-selected JSON file via blobstore's config
// package.
type Config struct {
	HttpBindPort uint32    `json:"http_bind_port"`
	LogLevel     log.Level `json:"log_level"`

	Namespace            string `json:"namespace"`
	Self                 uint64 `json:"self"`
	ReplicationFactor    uint32 `json:"replication_factor"`
	CfgReplicationFactor uint32 `json:"cfg_replication_factor"`
	LDTEnabled           bool   `json:"ldt_enabled"`
	PollIntervalS        int    `json:"poll_interval_s"`
}

func main() {
	config.Init("f", "", "partitioncored.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}
	log.SetOutputLevel(cfg.LogLevel)

	if ip, err := util.GetLocalIp(); err != nil {
		log.Info("could not determine local ip:", err)
	} else {
		log.Info("starting partitioncored on", ip, "port", cfg.HttpBindPort)
	}

	ns := partition.NewNamespace(
		partition.NodeID(cfg.Self),
		partition.ModernClustering,
		cfg.ReplicationFactor,
		cfg.CfgReplicationFactor,
		cfg.LDTEnabled,
	)

	arena := indextree.NewArena()
	for pid := uint32(0); pid < partition.NPartitions; pid++ {
		if err := ns.InitPartition(pid, &partition.ColdStartConfig{Arena: arena}, nil); err != nil {
			log.Fatal("init partition failed:", err)
		}
	}
	ns.CreateReplicaMaps()

	watch := partition.NewClusterWatch(ns, &staticObserver{}, nil, time.Duration(cfg.PollIntervalS)*time.Second)
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	go watch.Run(watchCtx)

	introServer := introspect.NewServer(map[string]*partition.Namespace{cfg.Namespace: ns})
	introServer.Serve(":" + strconv.Itoa(int(cfg.HttpBindPort)))

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	watch.Stop()
	cancelWatch()
	introServer.Stop()
}

// staticObserver is a placeholder ClusterObserver for the demo binary: a
// real deployment wires in its actual cluster membership client here.
type staticObserver struct{}

func (staticObserver) ClusterKey() uint64      { return 1 }
func (staticObserver) IsNodeUp(partition.NodeID) bool { return true }
