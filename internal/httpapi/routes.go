package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/hub"
	"github.com/tbradley9/turing-match/internal/ws"
)

func SetupRoutes(h *hub.Hub, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Public routes
	r.Post("/matches", RequestMatch(h, logger))
	r.Post("/matches/{matchID}/guess", SubmitGuess(h, logger))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, logger))
	return r
}
