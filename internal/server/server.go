package server

import (
	"embed"
	"io/fs"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/D0liphin/Testnice/internal/aggregator"
	"github.com/D0liphin/Testnice/internal/hub"
	"github.com/D0liphin/Testnice/internal/sched"
)

//go:embed all:web
var webFS embed.FS

// Server exposes the observed completion stream and live scheduler
// stats over HTTP.
type Server struct {
	engine     *gin.Engine
	hub        *hub.Hub
	aggregator *aggregator.Aggregator
	port       string
}

// New creates the web observer server.
func New(h *hub.Hub, agg *aggregator.Aggregator, port string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:     engine,
		hub:        h,
		aggregator: agg,
		port:       port,
	}

	s.setupRoutes()
	return s
}

// serveEmbedded reads a file from the embedded FS once and serves it
// with the given content type.
func serveEmbedded(webContent fs.FS, name string, contentType string) gin.HandlerFunc {
	data, err := fs.ReadFile(webContent, name)
	return func(c *gin.Context) {
		if err != nil {
			c.String(http.StatusNotFound, "file not found: %s", name)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func (s *Server) setupRoutes() {
	webContent, _ := fs.Sub(webFS, "web")

	s.engine.GET("/", serveEmbedded(webContent, "index.html", "text/html; charset=utf-8"))

	// Health check.
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"uptime":      stats.Uptime,
			"completions": stats.TotalCompletions,
			"per_second":  stats.PerSecond,
			"dropped":     stats.Dropped,
		})
	})

	// Completion metrics.
	s.engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.aggregator.Snapshot())
	})

	// Live scheduler snapshot for one process.
	s.engine.GET("/api/sched/:pid", func(c *gin.Context) {
		pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad pid"})
			return
		}
		snap, err := sched.Of(int32(pid))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	// WebSocket completion stream.
	s.engine.GET("/ws", s.handleWebSocket)

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// Start runs the server. Blocks until the server is stopped.
func (s *Server) Start() error {
	return s.engine.Run(":" + s.port)
}
