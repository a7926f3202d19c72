// Package server exposes watch-mode status over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gotrs-io/l10ncheck/internal/history"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/metrics"
	"github.com/gotrs-io/l10ncheck/internal/report"
	"github.com/gotrs-io/l10ncheck/internal/version"
)

// Server serves health, metrics and the latest check results.
type Server struct {
	engine  *gin.Engine
	srv     *http.Server
	locales func() []locale.Case
	metrics *metrics.Recorder
	history *history.Store
	logger  *log.Logger
	events  *hub

	mu     sync.RWMutex
	latest *report.Report
}

// New builds the router. rec and store may be nil.
func New(addr string, locales func() []locale.Case, rec *metrics.Recorder, store *history.Store) *Server {
	s := &Server{
		locales: locales,
		metrics: rec,
		history: store,
		logger:  log.New(os.Stdout, "[SERVER] ", log.LstdFlags),
		events:  newHub(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.handleHealth)
	if rec != nil {
		r.GET("/metrics", gin.WrapH(rec.Handler()))
	}
	api := r.Group("/api/v1")
	{
		api.GET("/locales", s.handleLocales)
		api.GET("/runs/latest", s.handleLatestRun)
		api.GET("/locales/:locale/history", s.handleLocaleHistory)
		api.GET("/events", s.handleEvents)
	}
	s.engine = r
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetLatest publishes the report of the most recent run and announces it to
// live subscribers.
func (s *Server) SetLatest(rep *report.Report) {
	s.mu.Lock()
	s.latest = rep
	s.mu.Unlock()
	s.publish(Event{Type: EventRun, Report: rep})
}

// Latest returns the most recently published report, if any.
func (s *Server) Latest() *report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("Listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully. Hijacked event streams are closed
// explicitly since http.Server does not track them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.closeAll()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "healthy", "service": "l10ncheck", "version": version.GetInfo()}
	if rep := s.Latest(); rep != nil {
		body["last_run_id"] = rep.RunID
		body["last_run_passed"] = rep.Passed()
	}
	c.JSON(status, body)
}

func (s *Server) handleLocales(c *gin.Context) {
	var list []locale.Case
	if s.locales != nil {
		list = s.locales()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

func (s *Server) handleLatestRun(c *gin.Context) {
	if rep := s.Latest(); rep != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": rep})
		return
	}
	if s.history != nil {
		rep, err := s.history.LatestRun(c.Request.Context())
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"success": true, "data": rep})
			return
		case !errors.Is(err, history.ErrNoRuns):
			s.logger.Printf("Failed to load latest run: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load latest run"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no runs yet"})
}

func (s *Server) handleLocaleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "history is disabled"})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	results, err := s.history.LocaleHistory(c.Request.Context(), c.Param("locale"), limit)
	if err != nil {
		s.logger.Printf("Failed to load history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": results})
}
