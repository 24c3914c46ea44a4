// Package server exposes the service over HTTP.
//
// The gin engine carries the REST surface under the configured API prefix,
// every payload wrapped in the {code, message, data, meta} envelope. Bearer
// auth guards the API group; /healthz and /metrics stay open. The whole
// engine is wrapped in otelhttp so traces propagate when a tracer provider
// is installed.
package server

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/HyxiaoGe/prompthub/ai"
	"github.com/HyxiaoGe/prompthub/config"
	"github.com/HyxiaoGe/prompthub/projects"
	"github.com/HyxiaoGe/prompthub/prompts"
	"github.com/HyxiaoGe/prompthub/refs"
	"github.com/HyxiaoGe/prompthub/scene"
	"github.com/HyxiaoGe/prompthub/store"
	"github.com/HyxiaoGe/prompthub/versions"
)

const (
	// defaultReadHeaderTimeout prevents Slowloris attacks.
	defaultReadHeaderTimeout = 10 * time.Second

	// defaultReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	defaultReadTimeout = 30 * time.Second

	// defaultWriteTimeout is the maximum duration before timing out
	// writes of the response.
	defaultWriteTimeout = 60 * time.Second

	// defaultIdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled.
	defaultIdleTimeout = 120 * time.Second
)

// Deps bundles the services the HTTP layer fronts. Store is also consumed
// directly by the bearer-auth middleware to resolve API keys.
type Deps struct {
	Store    store.Store
	Projects *projects.Service
	Prompts  *prompts.Service
	Scenes   *scene.Service
	Refs     *refs.Service
	Versions *versions.Service
	AI       *ai.Service
}

// Server is the HTTP front of the service.
type Server struct {
	cfg    config.Settings
	deps   Deps
	engine *gin.Engine

	httpSrv   *http.Server
	httpSrvMu sync.Mutex
}

// New builds a server with its routes installed. The engine runs in release
// mode unless LOG_LEVEL asks for debug output.
func New(cfg config.Settings, deps Deps) *Server {
	if !strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, deps: deps, engine: gin.New()}
	initRouter(s.engine, s)
	return s
}

// Handler returns the engine wrapped for trace propagation. Without a tracer
// provider installed the wrap is a no-op.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "prompthub-api")
}

// ListenAndServe starts the HTTP server on the configured address and blocks
// until it stops.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	s.httpSrvMu.Lock()
	s.httpSrv = srv
	s.httpSrvMu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpSrvMu.Lock()
	srv := s.httpSrv
	s.httpSrvMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
