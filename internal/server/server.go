// Package server exposes the task list over a JSON API and a
// server-rendered HTML page.
package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tasklist/internal/format"
	"tasklist/internal/result"
	"tasklist/internal/task"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Server struct {
	mgr      *task.Manager
	exporter *result.Exporter
	log      *log.Logger
	router   *gin.Engine
}

func New(mgr *task.Manager, exporter *result.Exporter, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{mgr: mgr, exporter: exporter, log: logger, router: router}

	router.Use(gin.Recovery(), s.requestID, s.accessLog)
	router.SetHTMLTemplate(template.Must(template.New("").Funcs(template.FuncMap{
		"currency":  format.CurrencyBR,
		"dateBR":    format.DateISOToBR,
		"highlight": func(cost float64) bool { return cost >= format.HighlightCost },
		"inc":       func(i int) int { return i + 1 },
	}).ParseFS(templatesFS, "templates/*.html")))

	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// Web routes
	router.GET("/", s.handleIndex)
	router.POST("/tarefas", s.handleFormCreate)
	router.GET("/tarefas/:id/editar", s.handleFormEdit)
	router.POST("/tarefas/:id", s.handleFormUpdate)
	router.POST("/tarefas/:id/excluir", s.handleFormDelete)
	router.POST("/tarefas/:id/mover-cima", s.handleFormMove(task.Up))
	router.POST("/tarefas/:id/mover-baixo", s.handleFormMove(task.Down))

	// API routes
	api := router.Group("/api", cors)
	{
		api.GET("/tarefas", s.handleList)
		api.POST("/tarefas", s.handleCreate)
		api.GET("/tarefas/export", s.handleExport)
		api.PUT("/tarefas/:id", s.handleUpdate)
		api.DELETE("/tarefas/:id", s.handleDelete)
		api.POST("/tarefas/:id/mover-cima", s.handleMove(task.Up))
		api.POST("/tarefas/:id/mover-baixo", s.handleMove(task.Down))
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

const requestIDHeader = "X-Request-ID"

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
		"request_id", c.GetString("request_id"),
	)
}

func cors(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type,"+requestIDHeader)
	c.Next()
}
