// Package server exposes the Pixelprobe HTTP API: image analysis, stored
// results, the model speed leaderboard, and the QR share endpoint.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pixelprobe/pixelprobe/internal/classify"
	"github.com/pixelprobe/pixelprobe/internal/dispatch"
	"github.com/pixelprobe/pixelprobe/internal/leaderboard"
	"github.com/pixelprobe/pixelprobe/internal/store"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Store       *store.Store
	Classifier  *classify.Classifier
	Board       *leaderboard.Board
	Runner      dispatch.Runner
	Port        int
	CORSOrigins []string
	Out         io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	if opts.Port <= 0 {
		opts.Port = 8000
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Pixelprobe API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin engine with all routes registered. Exposed
// separately so tests can drive it with httptest.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("server: classifier is required")
	}
	if opts.Board == nil {
		return nil, fmt.Errorf("server: leaderboard is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("server: runner is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(opts.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = opts.CORSOrigins
	} else {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = []string{"*"}
	router.Use(cors.New(corsCfg))

	registerRoutes(router, opts)
	return router, nil
}
