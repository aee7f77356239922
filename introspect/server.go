package introspect

import (
	"context"
	"net/http"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/cubefs/partitionkv/partition"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 30
)

// Server serves the read-only info/replica-map/stats surface over plain
// HTTP, grounded on server/httpserver.go's HttpServer. It holds every
// namespace by name so a single process can answer for all of them, the
// way the source's g_config.namespaces array does.
type Server struct {
	namespaces map[string]*partition.Namespace
	httpServer *http.Server
}

// NewServer builds a Server over the given name -> namespace set.
func NewServer(namespaces map[string]*partition.Namespace) *Server {
	return &Server{namespaces: namespaces}
}

// Serve starts listening on addr in the background.
func (s *Server) Serve(addr string) {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(s.newHandler(), progressHandlerFunc(s.logHandler)),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("introspect http server exits:", err)
		}
	}()
	s.httpServer = httpServer

	log.Info("introspect http server is running at:", addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	s.httpServer.Shutdown(ctx)
}

func (s *Server) newHandler() *rpc.Router {
	rpc.GET("/info", s.Info, rpc.OptArgsQuery())
	rpc.GET("/replicas/master", s.ReplicasMaster, rpc.OptArgsQuery())
	rpc.GET("/replicas/all", s.ReplicasAll, rpc.OptArgsQuery())
	rpc.GET("/replicas/prole", s.ReplicasProle, rpc.OptArgsQuery())
	rpc.GET("/stats", s.Stats, rpc.OptArgsQuery())

	return rpc.DefaultRouter
}

// progressHandlerFunc adapts a plain function to rpc.ProgressHandler.
type progressHandlerFunc func(http.ResponseWriter, *http.Request, http.HandlerFunc)

func (f progressHandlerFunc) Handler(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	f(w, r, next)
}

func (s *Server) logHandler(w http.ResponseWriter, r *http.Request, f http.HandlerFunc) {
	start := time.Now()
	f(w, r)
	log.Info("introspect ", r.Method, " ", r.URL.Path, " took ", time.Since(start))
}

// Info renders PartitionInfoHeader followed by one ';'-joined record per
// partition across every namespace.
func (s *Server) Info(c *rpc.Context) {
	out := partition.PartitionInfoHeader + ";"
	for name, ns := range s.namespaces {
		out += ns.PartitionInfoString(name) + ";"
	}
	s.respondPlain(c, out)
}

// ReplicasMaster renders the master replica map for every namespace.
func (s *Server) ReplicasMaster(c *rpc.Context) {
	s.respondJoined(c, func(name string, ns *partition.Namespace) string {
		return ns.MasterMapString(name)
	})
}

// ReplicasAll renders every replica-index map for every namespace.
func (s *Server) ReplicasAll(c *rpc.Context) {
	s.respondJoined(c, func(name string, ns *partition.Namespace) string {
		return ns.AllReplicasMapString(name)
	})
}

// ReplicasProle renders the prole map for every namespace.
func (s *Server) ReplicasProle(c *rpc.Context) {
	s.respondJoined(c, func(name string, ns *partition.Namespace) string {
		return ns.ProleMapString(name)
	})
}

func (s *Server) respondJoined(c *rpc.Context, render func(string, *partition.Namespace) string) {
	out := ""
	for name, ns := range s.namespaces {
		out += render(name, ns) + ";"
	}
	s.respondPlain(c, out)
}

func (s *Server) respondPlain(c *rpc.Context, body string) {
	c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.Writer.WriteHeader(http.StatusOK)
	_, _ = c.Writer.Write([]byte(body))
}

// Stats refreshes the Prometheus gauges from each namespace's current
// replica stats and queryable-partition count, then responds 200.
func (s *Server) Stats(c *rpc.Context) {
	for name, ns := range s.namespaces {
		s.refreshMetrics(name, ns)
	}
	c.RespondStatus(http.StatusOK)
}

func (s *Server) refreshMetrics(name string, ns *partition.Namespace) {
	queryable := 0
	master := 0
	for pid := uint32(0); pid < partition.NPartitions; pid++ {
		if ns.IsPartitionQueryable(pid) {
			queryable++
		}
		p := ns.Partition(pid)
		if p == nil {
			continue
		}
		lk := p.Lock()
		isMaster := partition.WritableNode(lk.Record(), ns.Self) == ns.Self
		lk.Unlock()
		if isMaster {
			master++
		}
	}
	queryablePartitions.WithLabelValues(name).Set(float64(queryable))
	masterPartitions.WithLabelValues(name).Set(float64(master))

	stats := ns.GetReplicaStats()
	outstandingReservations.WithLabelValues(name, "master").Set(float64(stats.NMasterObjects))
	outstandingReservations.WithLabelValues(name, "prole").Set(float64(stats.NProleObjects))
	outstandingReservations.WithLabelValues(name, "non_replica").Set(float64(stats.NNonReplicaObjects))
}
