package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ldi/tempo/internal/engine"
)

type Server struct {
	engine *engine.Engine
	server *http.Server
}

func NewServer(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// Router builds the gin handler. Exposed separately from Start so
// tests can drive it through httptest without binding a port.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.POST("/tasks/:id/start", s.handleStartTask)
		api.POST("/tasks/:id/complete", s.handleCompleteTask)
		api.POST("/tasks/:id/reschedule", s.handleRescheduleTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/history", s.handleHistory)
		api.PUT("/history/rename", s.handleRenameHistory)
		api.GET("/suggestions", s.handleSuggestions)
		api.GET("/stats", s.handleStats)
		api.POST("/reset", s.handleReset)
	}

	return router
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.engine.Tasks()})
}

// CreateTaskRequest carries a new task's title and time budget broken
// into clock components. At least one component must be non-zero.
type CreateTaskRequest struct {
	Title   string `json:"title" binding:"required"`
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Seconds int    `json:"seconds"`
}

func (r CreateTaskRequest) timeLimit() int {
	return r.Hours*3600 + r.Minutes*60 + r.Seconds
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.engine.CreateTask(req.Title, req.timeLimit())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleStartTask(c *gin.Context) {
	s.withTask(c, func(id string) { s.engine.StartTask(id) })
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	s.withTask(c, func(id string) { s.engine.CompleteTask(id) })
}

func (s *Server) handleRescheduleTask(c *gin.Context) {
	id := c.Param("id")
	if s.engine.Task(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	replacement := s.engine.RescheduleTask(id)
	if replacement == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "task cannot be rescheduled"})
		return
	}
	c.JSON(http.StatusCreated, replacement)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	s.withTask(c, func(id string) { s.engine.DeleteTask(id) })
}

// withTask runs an engine mutation for a path task ID, returning the
// task's state afterward. Unknown IDs get a 404 rather than silently
// succeeding.
func (s *Server) withTask(c *gin.Context, op func(id string)) {
	id := c.Param("id")
	if s.engine.Task(id) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	op(id)

	if task := s.engine.Task(id); task != nil {
		c.JSON(http.StatusOK, task)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.History())
}

type renameRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func (s *Server) handleRenameHistory(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.engine.RenameHistory(req.From, req.To)
	c.JSON(http.StatusOK, s.engine.History())
}

func (s *Server) handleSuggestions(c *gin.Context) {
	query := c.Query("q")
	c.JSON(http.StatusOK, gin.H{"suggestions": s.engine.Suggestions(query)})
}

func (s *Server) handleStats(c *gin.Context) {
	rate, attempts := s.engine.CompletionRate()
	c.JSON(http.StatusOK, gin.H{
		"score":           s.engine.Score(),
		"completion_rate": rate,
		"total_attempts":  attempts,
		"daily_stats":     s.engine.DailyStats(),
	})
}

type resetRequest struct {
	Confirm string `json:"confirm"`
}

func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Confirm) != "RESET" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation keyword required"})
		return
	}

	s.engine.ResetAll()
	c.JSON(http.StatusOK, s.engine.State())
}
