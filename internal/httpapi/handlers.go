package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/hub"
	"github.com/tbradley9/turing-match/internal/match"
	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/types"
)

// matchWait bounds how long a request-match call is willing to sit parked
// beyond the hub's own pair window.
const matchWait = 30 * time.Second

// RequestMatch parks the caller with the hub until an opponent (human or
// agent) is assigned.
func RequestMatch(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.MatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			respondError(w, http.StatusBadRequest, "userId is required")
			return
		}

		reply := make(chan types.MatchAssignment, 1)
		h.Inbox() <- hub.RequestMatch{UserID: req.UserID, Reply: reply}

		select {
		case assignment := <-reply:
			logger.Info("match assigned",
				zap.String("user_id", req.UserID),
				zap.String("match_id", assignment.MatchID),
				zap.String("kind", assignment.MatchKind))
			respondJSON(w, http.StatusCreated, assignment)

		case <-r.Context().Done():
			// Caller hung up while parked; the hub's pair timeout will
			// resolve the dangling seeker.
			return

		case <-time.After(matchWait):
			respondError(w, http.StatusServiceUnavailable, "no opponent available")
		}
	}
}

// SubmitGuess scores the caller's guess with the canonical formula and the
// room's declared kind.
func SubmitGuess(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")

		var req types.GuessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			respondError(w, http.StatusBadRequest, "userId is required")
			return
		}
		choice := session.Guess(req.Choice)
		if choice != session.GuessHuman && choice != session.GuessAgent {
			respondError(w, http.StatusBadRequest, "choice must be human or agent")
			return
		}

		roomReply := make(chan *match.Room, 1)
		h.Inbox() <- hub.GetRoom{MatchID: matchID, Reply: roomReply}
		room := <-roomReply
		if room == nil {
			respondError(w, http.StatusNotFound, "match not found")
			return
		}

		viewReply := make(chan match.View, 1)
		room.Inbox() <- match.GetView{Reply: viewReply}
		view := <-viewReply

		role, ok := view.Roles[req.UserID]
		if !ok {
			respondError(w, http.StatusForbidden, "not a participant")
			return
		}

		received := 0
		for _, m := range view.Messages {
			if m.Sender != role {
				received++
			}
		}

		correct := choice == view.Kind.Opponent()
		score := session.ExpectedScore(correct, received)

		logger.Info("guess scored",
			zap.String("match_id", matchID),
			zap.String("user_id", req.UserID),
			zap.String("choice", string(choice)),
			zap.Bool("correct", correct),
			zap.Int("score", score))

		respondJSON(w, http.StatusOK, types.GuessResponse{
			Score:        &score,
			OpponentType: string(view.Kind.Opponent()),
			IsCorrect:    &correct,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
