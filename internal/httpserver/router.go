package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"estimator/internal/apperr"
	"estimator/internal/llm"
	"estimator/internal/middleware"
)

type RouterDeps struct {
	Logger    *slog.Logger
	Provider  llm.Provider
	Estimator Estimator
	Version   string
}

// NewRouter собирает chi-роутер с общими middleware.
func NewRouter(deps RouterDeps) http.Handler {
	h := &handlers{
		provider:  deps.Provider,
		estimator: deps.Estimator,
		logger:    deps.Logger,
		version:   deps.Version,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger, func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, r, http.StatusInternalServerError, string(apperr.KindInternal), "internal error", nil)
	}))
	r.Use(middleware.Logging(deps.Logger, "/health", "/api/v1/llm/health"))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, r, http.StatusNotFound, "NotFound", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", nil)
	})

	r.Get("/", h.info)
	r.Get("/health", h.health)

	r.Route("/api/v1/llm", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/models", h.models)
		r.Post("/ask", h.ask)
		r.Post("/chat", h.chat)
		r.Post("/estimate", h.estimate)
	})

	return r
}
