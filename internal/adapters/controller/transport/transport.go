package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/controller/trigger"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type changeDispatcher interface {
	Handle(ctx context.Context, msg trigger.Message) error
}

type reminderPoller interface {
	RunOnce(ctx context.Context) (service.PollReport, error)
}

// InitRoutes builds the HTTP surface: change webhook, manual poll and health check.
func InitRoutes(logger *types.Logger, dispatcher changeDispatcher, poller reminderPoller) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	handler := NewHandler(dispatcher, poller)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "event-reminders",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.POST("/hooks/changes", handler.HandleChange)
	router.POST("/reconcile", handler.Reconcile)

	return router
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	httpServer *http.Server
	logger     *types.Logger
}

func NewServer(addr string, handler http.Handler, logger *types.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      time.Minute,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func requestLogger(logger *types.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			logger.Warnf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}
