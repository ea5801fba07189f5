package server

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/padwake/internal/metrics"
	"github.com/loykin/padwake/internal/supervisor"
)

// SnapshotSource is implemented by *supervisor.Status.
type SnapshotSource interface {
	Snapshot() supervisor.Snapshot
}

// Router exposes read-only daemon state.
// Endpoints:
//
//	GET {basePath}/status    supervisor snapshot as JSON
//	GET {basePath}/healthz   liveness
//	GET {basePath}/metrics   Prometheus exposition
type Router struct {
	src      SnapshotSource
	basePath string
}

func NewRouter(src SnapshotSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealth)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts serving the router on addr in the background, over TLS
// when tlsCfg is non-nil. Listen failures are logged to log.
func NewServer(addr, basePath string, src SnapshotSource, tlsCfg *tls.Config, log *slog.Logger) *http.Server {
	if log == nil {
		log = slog.Default()
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(src, basePath).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		TLSConfig:         tlsCfg,
	}
	go func() {
		var err error
		if tlsCfg != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server error", "listen", addr, "error", err)
		}
	}()
	return server
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.src.Snapshot())
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}
