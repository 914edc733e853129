// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/command"
	"github.com/thereceipt/receipt-raster/internal/printer"
	"github.com/thereceipt/receipt-raster/internal/service"
)

// Server is the API server
type Server struct {
	router   *gin.Engine
	service  *service.Service
	executor *command.Executor
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a new API server. Job events from the service are
// broadcast to WebSocket clients.
func NewServer(svc *service.Service, allowedOrigins []string, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "api"))

	router := gin.New()
	router.Use(recoveryMiddleware(logger))
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware(allowedOrigins))

	server := &Server{
		router:   router,
		service:  svc,
		executor: command.NewExecutor(svc),
		hub:      NewHub(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}

	svc.OnJobEvent(server.hub.BroadcastJobEvent)
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.POST("/print", s.handlePrint)
	s.router.POST("/preview", s.handlePreview)
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)
	s.router.GET("/sample", s.handleSample)

	// Command endpoint
	s.router.POST("/command", s.handleCommand)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close disconnects all WebSocket clients
func (s *Server) Close() {
	s.hub.Close()
}

// handlePrint renders and prints a receipt. Unless async is set the
// response is sent once the printer has accepted the job.
func (s *Server) handlePrint(c *gin.Context) {
	var req service.PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.service.Print(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, &job)
		return
	}

	if req.Async {
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"job_id":  job.ID,
			"status":  job.Status,
		})
		return
	}

	response := gin.H{
		"success": true,
		"job_id":  job.ID,
		"status":  job.Status,
	}
	if job.Confirmation != nil {
		response["message"] = job.Confirmation.Message
		response["confirmation"] = job.Confirmation
	}
	c.JSON(http.StatusOK, response)
}

// handlePreview returns the binarized receipt as a PNG
func (s *Server) handlePreview(c *gin.Context) {
	var req service.PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, result, err := s.service.Preview(req.Receipt, req.Layout)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}

	c.Header("X-Receipt-Total", result.Totals.Total.StringFixed(2))
	c.Header("X-Receipt-Truncated", strconv.Itoa(result.Degradations.Truncated))
	c.Header("X-Receipt-Missing-Glyphs", strconv.Itoa(result.Degradations.MissingGlyphs))
	c.Data(http.StatusOK, "image/png", data)
}

// handleGetJobs returns all print jobs
func (s *Server) handleGetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.service.Jobs()})
}

// handleGetJob returns a specific print job
func (s *Server) handleGetJob(c *gin.Context) {
	job := s.service.Job(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleSample returns the built in sample receipt
func (s *Server) handleSample(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Sample())
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(c.Request.Context(), req.Command)

	if result.Success {
		c.JSON(http.StatusOK, result)
	} else {
		c.JSON(http.StatusBadRequest, result)
	}
}

// respondError maps the error taxonomy onto status codes
func (s *Server) respondError(c *gin.Context, err error, job *printer.PrintJob) {
	status := http.StatusInternalServerError
	switch {
	case service.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrPrintFailed):
		status = http.StatusBadGateway
	}

	response := gin.H{"success": false, "error": err.Error()}
	if job != nil && job.ID != "" {
		response["job_id"] = job.ID
		response["status"] = job.Status
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, response)
}
