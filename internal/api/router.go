package api

import (
	"net/http"

	"cdp/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func NewRouter(h *Handlers, admin *Admin, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)
	r.Use(ChiMiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Idempotent event ingestion
	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Idempotency(redisClient)).Post("/events", h.IngestEvent)
	})

	// Read-only operator surface
	r.Route("/admin", func(r chi.Router) {
		r.Get("/streams", admin.ListStreams)
		r.Get("/streams/{topic}/entries", admin.StreamEntries)
		r.Get("/streams/{topic}/pending", admin.StreamPending)
		r.Get("/reviews", h.ListReviews)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
