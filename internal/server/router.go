package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/craftd/internal/backup"
	"github.com/loykin/craftd/internal/history"
	"github.com/loykin/craftd/internal/metrics"
	"github.com/loykin/craftd/internal/supervisor"
)

// Router provides embeddable HTTP handlers for controlling the server.
// Endpoints:
//   GET  {basePath}/status         current state snapshot
//   POST {basePath}/start          begin the start sequence (async)
//   POST {basePath}/stop           request a graceful stop
//   POST {basePath}/restart        stop, settle, start (async)
//   POST {basePath}/send           body: {"command": "..."}
//   GET  {basePath}/history        query: limit=N (default 50)
//   GET  {basePath}/backups        list backup archives, oldest first
//   GET  {basePath}/metrics        Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	sup      *supervisor.Supervisor
	hist     history.Store
	backups  *backup.Manager
	basePath string
}

func NewRouter(sup *supervisor.Supervisor, hist history.Store, backups *backup.Manager, basePath string) *Router {
	return &Router{sup: sup, hist: hist, backups: backups, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/restart", r.handleRestart)
	group.POST("/send", r.handleSend)
	group.GET("/history", r.handleHistory)
	group.GET("/backups", r.handleBackups)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via http.Server's Close or Shutdown.
func NewServer(addr string, router *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.Status())
}

func (r *Router) handleStart(c *gin.Context) {
	if r.sup.Status().State != "stopped" {
		writeJSON(c, http.StatusConflict, errorResp{Error: supervisor.ErrNotStopped.Error()})
		return
	}
	// The sequence may install, update and back up first; run it in the
	// background and let the caller poll /status.
	go func() {
		_ = r.sup.StartSequence(context.Background())
	}()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	r.sup.StopRequested()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	go func() {
		_ = r.sup.RestartServer(context.Background())
	}()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

type sendReq struct {
	Command string `json:"command"`
}

func (r *Router) handleSend(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Command == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "command required"})
		return
	}
	if err := r.sup.SendCommand(req.Command); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, supervisor.ErrNotRunning) {
			status = http.StatusConflict
		}
		writeJSON(c, status, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := r.hist.Recent(c.Request.Context(), limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(c, http.StatusOK, events)
}

func (r *Router) handleBackups(c *gin.Context) {
	names, err := r.backups.List()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(c, http.StatusOK, names)
}
