// Package mockapi is an in-memory implementation of the marketing backend
// HTTP API. It backs the package tests and the `stratege mock-server`
// command, so the wizard can run without the real service.
package mockapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server serves the backend contract from memory.
type Server struct {
	engine *gin.Engine
	data   *store
	log    *zap.Logger

	mu       sync.Mutex
	failures map[string][]failure
	requests []string
	suggests map[string]int
}

type failure struct {
	status  int
	message string
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.data.now = now }
}

// WithSeed preloads demo scenarios and catalog entries.
func WithSeed() Option {
	return func(s *Server) { s.seed() }
}

// New builds a server. log may be nil.
func New(log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		data:     newStore(time.Now),
		log:      log,
		failures: make(map[string][]failure),
		suggests: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), s.recordAndInject())
	s.routes()
	return s
}

// Handler exposes the router, for httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.engine }

// FailNext makes the next request matching route fail with status and
// message. route is "METHOD /path/:param", e.g.
// "POST /api/configurations/:id/generate-plan". Calls queue up.
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	s.failures[route] = append(s.failures[route], failure{status: status, message: message})
	s.mu.Unlock()
}

// Requests returns the routes hit so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests returns how many times route was hit.
func (s *Server) CountRequests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == route {
			n++
		}
	}
	return n
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("mock backend listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("mock backend shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routeKey(c *gin.Context) string {
	return c.Request.Method + " " + c.FullPath()
}

// recordAndInject logs the route and applies queued failures.
func (s *Server) recordAndInject() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := s.routeKey(c)

		s.mu.Lock()
		s.requests = append(s.requests, key)
		var f *failure
		if queue := s.failures[key]; len(queue) > 0 {
			f = &queue[0]
			s.failures[key] = queue[1:]
		}
		s.mu.Unlock()

		if f != nil {
			c.AbortWithStatusJSON(f.status, gin.H{"error": f.message})
			return
		}
		c.Next()
	}
}

// requestLogger logs every request with zap.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			s.log.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			s.log.Warn("Client error", fields...)
		default:
			s.log.Debug("Request completed", fields...)
		}
	}
}
