// Package httpapi exposes a notebook over HTTP for a UI front end: a JSON
// REST API plus a websocket stream of notebook events.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aretw0/notetaker/pkg/notebook"
)

// Server serves one notebook.
type Server struct {
	nb      *notebook.Notebook
	logger  *slog.Logger
	origins []string
	engine  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithOriginPatterns allows cross-origin websocket clients, e.g. a dev
// server on another port.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// New builds the router.
func New(nb *notebook.Notebook, opts ...Option) *Server {
	s := &Server{nb: nb}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	r.GET("/healthz", s.health)

	api := r.Group("/api")
	notes := api.Group("/notes")
	notes.GET("", s.listNotes)
	notes.POST("", s.createNote)
	notes.POST("/from-template/:templateId", s.createFromTemplate)
	notes.GET("/:id", s.getNote)
	notes.PUT("/:id", s.replaceContent)
	notes.PATCH("/:id", s.patchNote)
	notes.DELETE("/:id", s.deleteNote)
	notes.GET("/:id/status", s.noteStatus)
	notes.POST("/:id/flush", s.flushNote)
	notes.GET("/:id/versions", s.listVersions)
	notes.POST("/:id/restore/:versionId", s.restoreVersion)
	notes.POST("/:id/enrich", s.enrichNote)
	notes.POST("/:id/transform", s.transformNote)

	api.GET("/templates", s.listTemplates)
	api.POST("/ask", s.ask)
	api.POST("/search", s.search)
	api.POST("/ingest", s.ingest)
	api.POST("/meeting", s.meeting)

	projects := api.Group("/projects")
	projects.GET("", s.listProjects)
	projects.POST("", s.createProject)
	projects.PUT("/:id", s.updateProject)
	projects.DELETE("/:id", s.deleteProject)
	projects.POST("/:id/subjects", s.addSubject)
	api.PUT("/subjects/:id", s.renameSubject)
	api.DELETE("/subjects/:id", s.deleteSubject)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.saveSettings)
	api.POST("/onboard", s.onboard)
	api.GET("/export", s.export)
	api.POST("/import", s.importSnapshot)
	api.GET("/events", s.events)

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx ends, then shuts down within
// five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("http api listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errc; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	return err
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "notebook": s.nb.State()})
}
