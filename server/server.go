// Package server exposes the aggregated video sets over HTTP. The surface is
// deliberately small: one read endpoint backed by the result cache and a
// status endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/clipfeed/clipfeed/pkg/cache"
	"github.com/clipfeed/clipfeed/pkg/domain"
)

// Server represents HTTP server instance
type Server struct {
	config  ConfigProvider
	videos  VideoProvider
	version string
	debug   bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// VideoProvider serves the aggregated result, refreshing it when stale.
type VideoProvider interface {
	GetOrRefresh(ctx context.Context, force bool) (*cache.Result, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, videos VideoProvider, version string, debug bool) *Server {
	s := &Server{
		config:  cfg,
		videos:  videos,
		version: version,
		debug:   debug,
		router:  routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("clipfeed", "clipfeed", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /videos", s.videosHandler)
		r.HandleFunc("GET /status", s.statusHandler)
	})
}

// videosResponse is the consumer-facing payload. LastFetchTime is epoch
// milliseconds.
type videosResponse struct {
	Videos            []domain.Video `json:"videos"`
	RecommendedVideos []domain.Video `json:"recommendedVideos"`
	LastFetchTime     int64          `json:"lastFetchTime"`
}

// videosHandler serves the aggregated sets, honoring ?force=true
func (s *Server) videosHandler(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	res, err := s.videos.GetOrRefresh(r.Context(), force)
	if err != nil {
		log.Printf("[ERROR] failed to get videos: %v", err)
		renderError(w, r, fmt.Errorf("failed to fetch videos: %w", err), http.StatusInternalServerError)
		return
	}

	resp := videosResponse{
		Videos:            res.General,
		RecommendedVideos: res.Recommended,
		LastFetchTime:     res.FetchedAt.UnixMilli(),
	}
	if resp.Videos == nil {
		resp.Videos = []domain.Video{}
	}
	if resp.RecommendedVideos == nil {
		resp.RecommendedVideos = []domain.Video{}
	}
	renderJSON(w, r, http.StatusOK, resp)
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
