package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// originAllowed reports whether the origin matches the configured policy.
func (c Config) originAllowed(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /generate", h.SubmitGeneration)
	mux.HandleFunc("POST /generate/status", h.PollGenerationStatus)
	mux.HandleFunc("POST /generate/wait", h.WaitGeneration)
	mux.HandleFunc("GET /generate/{project_id}", h.GetGeneration)
	// video_id is a trailing wildcard: Veo IDs are operation names
	// containing slashes.
	mux.HandleFunc("GET /videos/{project_id}/{segment_index}/{input_index}/{video_id...}", h.ServeVideo)

	// Innermost first: CORS runs closest to the mux, recovery outermost so
	// it also covers the other middleware.
	var handler http.Handler = mux
	handler = withCORS(cfg, handler)
	handler = withAccessLog(logger, handler)
	handler = withRecovery(logger, handler)
	return handler
}
