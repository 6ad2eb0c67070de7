package gateway

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// StatusProvider is the subset of taskrouter.Router the gateway's
// GET /api/status handler depends on. Kept narrow for the same reason as
// TaskSubmitter: the gateway never imports taskrouter's internal types.
type StatusProvider interface {
	RoutingStatus() (mode string, localModelID string)
}

// NewRouter builds the production HTTP entry point: health/status probes
// plus the synchronous webhook ingestion route. router and dispatcher wire
// the Channel Gateway to the Task Router the same way the bot long-poll
// loop does, just over HTTP instead of a poll loop.
func NewRouter(version string, router TaskSubmitter, status StatusProvider, dispatcher *Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))

	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(version))
	r.Get("/version", versionHandler(version))
	r.Get("/api/status", statusHandler(status))
	r.Post("/webhook", WebhookHandler(router, dispatcher))

	return r
}

func parseCORSOrigins() []string {
	originsEnv := os.Getenv("AGENTRT_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
			"version":   version,
		})
	}
}

func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"version": version, "service": "agentrt-gateway"})
	}
}

func statusHandler(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, localModelID := status.RoutingStatus()
		var localModel any
		if localModelID != "" {
			localModel = localModelID
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"routing":    mode,
			"localModel": localModel,
			"timestamp":  time.Now().UnixMilli(),
		})
	}
}
