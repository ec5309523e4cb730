package api

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/psemi/newshub/internal/scheduler"
)

// Server exposes the generated documents over HTTP. Documents are read
// from disk per request; the atomic publish rename keeps reads
// consistent.
type Server struct {
	dir   string
	sched *scheduler.Scheduler

	mu       sync.Mutex
	building bool
}

func NewServer(dir string, sched *scheduler.Scheduler) *Server {
	return &Server{dir: dir, sched: sched}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.doc("latest.json"))
		v1.GET("/news/:date", s.datedNews)
		v1.GET("/fields/:field", s.fieldNews)
		v1.GET("/trends", s.doc("trends.json"))
		v1.GET("/index", s.doc("index.json"))
		v1.POST("/refresh", s.refresh)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// doc serves one generated file verbatim.
func (s *Server) doc(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.serveFile(c, name)
	}
}

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	fieldRe = regexp.MustCompile(`^[a-z_]+$`)
)

func (s *Server) datedNews(c *gin.Context) {
	date := c.Param("date")
	if !dateRe.MatchString(date) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "date must be YYYY-MM-DD",
		})
		return
	}
	s.serveFile(c, date+".json")
}

func (s *Server) fieldNews(c *gin.Context) {
	field := c.Param("field")
	if !fieldRe.MatchString(field) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "unknown field key",
		})
		return
	}
	s.serveFile(c, field+".json")
}

func (s *Server) serveFile(c *gin.Context, name string) {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "document not generated yet",
		})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.File(path)
}

// refresh triggers one build. Concurrent triggers collapse: a build
// already in flight returns 409 instead of stacking runs.
func (s *Server) refresh(c *gin.Context) {
	if s.sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "unavailable",
			"message": "no scheduler attached",
		})
		return
	}

	s.mu.Lock()
	if s.building {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{
			"code":    "busy",
			"message": "a build is already running",
		})
		return
	}
	s.building = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.building = false
		s.mu.Unlock()
	}()

	report, err := s.sched.RunOnce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "build_failed",
			"message": err.Error(),
			"data":    report,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    report,
	})
}
