// Package server exposes snapshots over HTTP: a JSON-RPC tool endpoint for
// MCP clients, a plain REST endpoint and a health check.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marcin-skalski/workflow-monitor/internal/monitor"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

const (
	ResultSchemaV1 = "v1"
	ResultSchemaV2 = "v2"

	shutdownTimeout = 10 * time.Second
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks . SnapshotService

// SnapshotService is the part of monitor.Service the transport needs.
type SnapshotService interface {
	Snapshot(ctx context.Context, req monitor.Request) (*snapshot.Snapshot, error)
}

type Options struct {
	Name          string
	Version       string
	ResultSchema  string
	UIResourceURI string
	// CacheLen reports resident cache entries on /healthz. Optional.
	CacheLen func() int
	Stats    func() monitor.Stats
}

type Server struct {
	svc    SnapshotService
	opts   Options
	logger *slog.Logger
	engine *gin.Engine
}

func New(svc SnapshotService, opts Options, logger *slog.Logger) *Server {
	if opts.Name == "" {
		opts.Name = "workflow-monitor"
	}
	if opts.ResultSchema == "" {
		opts.ResultSchema = ResultSchemaV2
	}

	s := &Server{svc: svc, opts: opts, logger: logger}

	r := gin.New()
	r.Use(requestID(), accessLog(logger), recovery(logger))
	r.POST("/mcp", s.handleMCP)
	r.GET("/api/snapshot", s.handleSnapshot)
	r.GET("/healthz", s.handleHealth)
	s.engine = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
