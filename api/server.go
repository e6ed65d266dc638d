// Package api exposes the programmatic interface of spec.md §6 over HTTP
// for editor tooling, plus a WebSocket feed of watch events. This is the
// module's local stand-in for the spec's out-of-scope WASM binding: a
// different thin host for the same entry points.
package api

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tweers/diagnostics"
	"tweers/pipeline"
	"tweers/source"
	"tweers/watch"
)

// Server is the local programmatic HTTP/WS server.
type Server struct {
	router      *gin.Engine
	watcher     *watch.Watcher
	watcherMu   sync.Mutex
	wsClients   map[*websocket.Conn]bool
	wsClientsMu sync.Mutex
	wsUpgrader  websocket.Upgrader
	port        int
}

// Config configures a new Server.
type Config struct {
	Port       int
	EnableCORS bool
	Debug      bool
}

// NewServer builds a Server with routes configured.
func NewServer(cfg Config) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	if cfg.EnableCORS {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
		}))
	}

	s := &Server{
		router:    router,
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		port: cfg.Port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	grp := s.router.Group("/api")
	{
		grp.GET("/health", s.healthCheck)

		grp.POST("/parse", s.parse)
		grp.POST("/build", s.build)
		grp.GET("/passages/:file", s.listPassages)
		grp.GET("/passages/:file/:name", s.getPassage)

		grp.POST("/diagnostics/reachability", s.reachability)
		grp.POST("/diagnostics/simulate", s.simulate)

		grp.POST("/watch/start", s.startWatch)
		grp.POST("/watch/stop", s.stopWatch)
		grp.GET("/watch/status", s.watchStatus)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the server, blocking.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("🔌 WebSocket on ws://localhost%s/ws", addr)
	return s.router.Run(addr)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseRequest names a source directory, matching spec.md §6's parse entry
// point (sources already loaded from disk by the server, not loaded from
// an arbitrary single file).
type parseRequest struct {
	SourceDir string `json:"source_dir" binding:"required"`
	Base64    bool   `json:"base64"`
}

func (s *Server) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sources, err := source.Collect(req.SourceDir, req.Base64)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out, err := pipeline.Parse(sources, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"story_data": out.StoryData,
		"passages":   out.Passages,
		"warnings":   out.Warnings,
	})
}

type buildRequest struct {
	SourceDir        string `json:"source_dir" binding:"required"`
	OutputPath       string `json:"output_path"`
	ExecDir          string `json:"exec_dir"`
	StartOverride    string `json:"start_passage"`
	Base64           bool   `json:"base64"`
	IsDebug          bool   `json:"is_debug"`
	HookDeadlineSecs int    `json:"hook_deadline_secs"`
}

func (s *Server) build(c *gin.Context) {
	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg := pipeline.BuildConfig{
		SourceDir:     req.SourceDir,
		OutputPath:    req.OutputPath,
		ExecDir:       req.ExecDir,
		StartOverride: req.StartOverride,
		Base64:        req.Base64,
		IsDebug:       req.IsDebug,
	}
	if req.HookDeadlineSecs > 0 {
		cfg.HookDeadline = time.Duration(req.HookDeadlineSecs) * time.Second
	}
	result, err := pipeline.Build(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.OutputPath != "" {
		if err := pipeline.WriteOutput(req.OutputPath, result.HTML); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"warnings": result.Warnings,
	})
}

func (s *Server) listPassages(c *gin.Context) {
	dir := c.Param("file")
	sources, err := source.Collect(dir, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	passages, err := pipeline.Passages(sources)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "passages": passages})
}

func (s *Server) getPassage(c *gin.Context) {
	dir := c.Param("file")
	name := c.Param("name")
	sources, err := source.Collect(dir, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	passages, err := pipeline.Passages(sources)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p, ok := passages[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "passage not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"passage": gin.H{
			"name":      p.Name,
			"tags":      p.Tags,
			"content":   p.Content,
			"links":     diagnostics.ExtractLinks(p.Content),
			"variables": diagnostics.ExtractMacroVariables(p.Content),
		},
	})
}

type reachabilityRequest struct {
	SourceDir string `json:"source_dir" binding:"required"`
	Start     string `json:"start" binding:"required"`
}

func (s *Server) reachability(c *gin.Context) {
	var req reachabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sources, err := source.Collect(req.SourceDir, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	passages, err := pipeline.Passages(sources)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_, unreachable := diagnostics.Reachable(passages, req.Start)
	c.JSON(http.StatusOK, gin.H{"success": true, "unreachable": unreachable})
}

type simulateRequest struct {
	SourceDir string   `json:"source_dir" binding:"required"`
	Path      []string `json:"path" binding:"required"`
}

func (s *Server) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sources, err := source.Collect(req.SourceDir, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	passages, err := pipeline.Passages(sources)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	trace, errs := diagnostics.Simulate(passages, req.Path)
	errStrings := make([]string, len(errs))
	for i, e := range errs {
		errStrings[i] = e.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": len(errs) == 0,
		"trace":   trace,
		"errors":  errStrings,
	})
}

type startWatchRequest struct {
	SourceDir        string `json:"source_dir" binding:"required"`
	OutputPath       string `json:"output_path"`
	ExecDir          string `json:"exec_dir"`
	Base64           bool   `json:"base64"`
	HookDeadlineSecs int    `json:"hook_deadline_secs"`
}

func (s *Server) startWatch(c *gin.Context) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	if s.watcher != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "watcher already running"})
		return
	}
	var req startWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	watchCfg := pipeline.BuildConfig{
		SourceDir:  req.SourceDir,
		OutputPath: req.OutputPath,
		ExecDir:    req.ExecDir,
		Base64:     req.Base64,
	}
	if req.HookDeadlineSecs > 0 {
		watchCfg.HookDeadline = time.Duration(req.HookDeadlineSecs) * time.Second
	}
	w, err := watch.New(watchCfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	w.Start()
	s.watcher = w
	go s.broadcastWatchEvents(w)

	c.JSON(http.StatusOK, gin.H{"success": true, "source_dir": req.SourceDir})
}

func (s *Server) stopWatch(c *gin.Context) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	if s.watcher == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "watcher not running"})
		return
	}
	if err := s.watcher.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.watcher = nil
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) watchStatus(c *gin.Context) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()
	c.JSON(http.StatusOK, gin.H{"running": s.watcher != nil})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsClientsMu.Lock()
	s.wsClients[conn] = true
	count := len(s.wsClients)
	s.wsClientsMu.Unlock()
	log.Printf("🔌 WebSocket client connected (total: %d)", count)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.wsClientsMu.Lock()
			delete(s.wsClients, conn)
			count := len(s.wsClients)
			s.wsClientsMu.Unlock()
			log.Printf("🔌 WebSocket client disconnected (total: %d)", count)
			break
		}
	}
}

func (s *Server) broadcastWatchEvents(w *watch.Watcher) {
	for event := range w.Events() {
		message := gin.H{
			"type":      event.Type,
			"timestamp": event.Timestamp,
		}
		if event.Err != nil {
			message["error"] = event.Err.Error()
		}
		s.wsClientsMu.Lock()
		for client := range s.wsClients {
			if err := client.WriteJSON(message); err != nil {
				log.Printf("❌ WebSocket send failed: %v", err)
				client.Close()
				delete(s.wsClients, client)
			}
		}
		s.wsClientsMu.Unlock()
	}
}
