// Package api serves scans over HTTP as JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/netscan/pkg/scanner"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP front of a scanner.Service
type Server struct {
	service *scanner.Service
	router  *gin.Engine
}

// NewServer builds the router for service
func NewServer(service *scanner.Service) *Server {
	s := &Server{service: service}
	s.initRouter()
	return s
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger())

	api := s.router.Group("/api")
	{
		api.POST("/scan", s.handleScanStart)
		api.POST("/cancel", s.handleScanCancel)
		api.GET("/status", s.handleStatus)
		api.GET("/network", s.handleNetwork)

		api.GET("/results", s.handleResultsList)
		api.GET("/results/:id", s.handleResultDetail)
		api.POST("/clear", s.handleResultsClear)
		api.GET("/export/:id", s.handleResultExport)
	}
}

// requestLogger logs requests at verbose level through gologger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		gologger.Verbose().Msgf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		gologger.Info().Msgf("listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
