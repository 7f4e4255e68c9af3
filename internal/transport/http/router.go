package http

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router sets up HTTP routes
type Router struct {
	handler        *Handler
	rateLimiter    *RateLimiter
	allowedOrigins []string
	log            *slog.Logger
	mux            *http.ServeMux
}

// NewRouter creates a new router
func NewRouter(handler *Handler, rateLimiter *RateLimiter, allowedOrigins []string, log *slog.Logger) *Router {
	return &Router{
		handler:        handler,
		rateLimiter:    rateLimiter,
		allowedOrigins: allowedOrigins,
		log:            log,
		mux:            http.NewServeMux(),
	}
}

// Setup configures all routes
func (r *Router) Setup() http.Handler {
	r.mux.HandleFunc("/webhook", r.handler.Webhook)

	r.mux.HandleFunc("/api/v1/reports/weekly", r.handler.WeeklyReport)
	r.mux.HandleFunc("/api/v1/tasks/events", r.handler.TaskEvents)

	r.mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	r.mux.HandleFunc("/health", r.handler.Health)

	var handler http.Handler = r.mux

	handler = Recover(r.log)(handler)
	handler = Logging(r.log)(handler)

	if r.rateLimiter != nil {
		handler = r.rateLimiter.Middleware(handler)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: r.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", secretHeader},
	})

	return c.Handler(handler)
}
