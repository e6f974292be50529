package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Brownie44l1/eye-diagnosis/internal/server"
)

// Routes builds the router. A panic inside one request is turned into a 500
// by Recoverer and does not take the process down.
func (h *Handler) Routes(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(server.RequestID)
	r.Use(server.AccessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", h.Page)
	r.Post("/", h.Upload)
	r.Get("/health", h.Health)

	r.Route("/api", func(api chi.Router) {
		api.Post("/predict", h.Predict)
		api.Post("/predict/image", h.PredictFromImage)
	})
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
