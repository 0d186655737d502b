// Package collector is the HTTP service that receives inventory reports
// from agents.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/breeze-rmm/inventory-agent/internal/logging"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

var log = logging.L("collector")

const shutdownTimeout = 10 * time.Second

// Server holds the collector's routes and its only state, the count of
// accepted reports.
type Server struct {
	router   *gin.Engine
	registry *prometheus.Registry
	metrics  *metrics
	received atomic.Int64
	now      func() time.Time
}

// New builds a collector with its own metrics registry.
func New() *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		registry: reg,
		metrics:  newMetrics(reg),
		now:      time.Now,
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(s.recovery())
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, api.ErrorResponse{Error: "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Not found"})
	})

	r.POST(api.DataPath, s.handleAgentData)
	r.GET(api.HealthPath, s.handleHealth)
	r.GET(api.RootPath, s.handleRoot)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Received is the number of reports accepted since start.
func (s *Server) Received() int64 { return s.received.Load() }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("collector listening", "addr", addr, "endpoint", "POST "+api.DataPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("collector serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("collector shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("collector stopped", "received", s.Received())
	return nil
}

// recovery turns a handler panic into the documented 500 body.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.metrics.rejected.WithLabelValues(reasonPanic).Inc()
				log.Error("error processing agent data",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					logging.KeyRequestID, c.GetHeader(api.HeaderRequestID),
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
			}
		}()
		c.Next()
	}
}
