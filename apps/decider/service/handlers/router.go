package handlers

import (
	"net/http"

	"github.com/antinvestor/decider/apps/decider/middleware"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	ServiceName     string
	MaxArtifactSize int
	// Limiter guards the /api routes. Nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

// NewRouter mounts the API and probe routes.
func NewRouter(service DecisionService, cfg RouterConfig) http.Handler {
	var limit func(http.Handler) http.Handler = func(h http.Handler) http.Handler { return h }
	if cfg.Limiter != nil {
		limit = cfg.Limiter.Middleware
	}

	mux := http.NewServeMux()
	mux.Handle("/health", NewHealthProbe(cfg.ServiceName))
	mux.Handle("/ready", NewReadyProbe(cfg.ServiceName))
	mux.Handle("/api/analyze", limit(NewAnalyzeHandler(service, cfg.MaxArtifactSize)))
	mux.Handle("/api/decisions", limit(NewHistoryHandler(service)))

	return middleware.RequestID(mux)
}
