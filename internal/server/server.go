// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/pipeline"
)

// Options configures a Server.
type Options struct {
	UploadTTL   time.Duration
	MaxUploadMB int
	// QueryTimeout bounds one /query request end to end.
	QueryTimeout time.Duration
}

// Server routes /health, /upload and /query.
type Server struct {
	pipe     *pipeline.Pipeline
	uploads  *Uploads
	logger   *zap.Logger
	opts     Options
	engine   *gin.Engine
	started  time.Time
	backends []string
}

// New builds the router. backends is reported by /health.
func New(pipe *pipeline.Pipeline, logger *zap.Logger, opts Options, backends []string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 32
	}
	s := &Server{
		pipe:     pipe,
		uploads:  NewUploads(opts.UploadTTL),
		logger:   logger.Named("server"),
		opts:     opts,
		started:  time.Now(),
		backends: backends,
	}

	r := gin.New()
	r.MaxMultipartMemory = int64(opts.MaxUploadMB) << 20
	r.Use(gin.Recovery(), s.accessLog())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", s.health)
	r.POST("/upload", s.upload)
	r.POST("/query", s.query)
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Uploads exposes the upload store.
func (s *Server) Uploads() *Uploads { return s.uploads }

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
