package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/hub"
	"github.com/tbradley9/turing-match/internal/match"
	"github.com/tbradley9/turing-match/internal/types"
)

// Handler upgrades the connection and bridges it to the match room actor.
// The match and user are identified by query parameters; frames after that
// carry only traffic.
func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.URL.Query().Get("matchId")
		userID := r.URL.Query().Get("userId")
		if matchID == "" || userID == "" {
			http.Error(w, "missing matchId or userId", http.StatusBadRequest)
			return
		}

		reply := make(chan *match.Room, 1)
		h.Inbox() <- hub.GetRoom{MatchID: matchID, Reply: reply}
		room := <-reply
		if room == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerFrame, 8)
		room.Inbox() <- match.Join{UserID: userID, Outbox: out}
		defer func() { room.Inbox() <- match.Leave{UserID: userID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				payload, _ := json.Marshal(frame)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (match.Leave in defer):
				return
			}

			var frame types.ClientFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","error":"bad json"}`))
				continue
			}

			switch frame.Type {
			case types.FrameJoin:
				// Already joined on connect; re-joining just re-sends the
				// history snapshot.
				room.Inbox() <- match.Leave{UserID: userID}
				room.Inbox() <- match.Join{UserID: userID, Outbox: out}

			case types.FrameLeave:
				return

			case types.FrameSend:
				room.Inbox() <- match.SendText{UserID: userID, Text: frame.Text}

			default:
				logger.Warn("unknown frame type",
					zap.String("type", frame.Type),
					zap.String("user_id", userID))
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","error":"unknown type"}`))
			}
		}
	}
}
