package api

import (
	"net/http"
	"time"

	"github.com/Koalla18/TakeSmart/internal/api/controlplane"
	"github.com/Koalla18/TakeSmart/internal/api/dataplane"
	"github.com/Koalla18/TakeSmart/internal/cache"
	"github.com/Koalla18/TakeSmart/internal/cacheaside"
	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/observability"
	"github.com/Koalla18/TakeSmart/internal/ratelimit"
)

// Catalog is everything the HTTP surface needs from the catalog.
// store.CachedStore implements it.
type Catalog interface {
	dataplane.Reader
	controlplane.Writer
}

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Store       Catalog
	Cache       cache.Cache             // optional: readiness reporting
	Coordinator *cacheaside.Coordinator // optional: post-mutation sweep
	AccessLog   *logging.Logger         // optional: per-request log lines
	Limiter     *ratelimit.Limiter      // optional: per-client bound on query endpoints
	TrustProxy  bool                    // key the limiter on forwarding headers
}

// NewHandler builds the routed and instrumented handler.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	dpHandler := &dataplane.Handler{
		Store: cfg.Store,
		Cache: cfg.Cache,
	}
	dpHandler.RegisterRoutes(mux)

	cpHandler := &controlplane.Handler{
		Store: cfg.Store,
	}
	cpHandler.RegisterRoutes(mux)

	// Order matters: the route is captured on the request the mux routed,
	// which is the one the tracing middleware hands down.
	var handler http.Handler = mux
	if cfg.Coordinator != nil {
		handler = InvalidateOnMutation(cfg.Coordinator, handler)
	}
	if cfg.Limiter != nil {
		handler = ratelimit.Middleware(cfg.Limiter, cachekey.QueryPaths, cfg.TrustProxy)(handler)
	}
	handler = captureRoute(handler)
	handler = observability.HTTPMiddleware(handler)
	handler = instrument(cfg.AccessLog, handler)
	return handler
}

// NewServer returns an unstarted HTTP server for the catalog API.
func NewServer(addr string, cfg ServerConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
