package types

import (
	"time"

	"github.com/tbradley9/turing-match/internal/session"
)

// Client -> Server frame types.
const (
	FrameJoin  = "join"
	FrameLeave = "leave"
	FrameSend  = "send"
)

// Server -> Client frame types.
const (
	FrameHistory     = "history"
	FrameMessage     = "message"
	FrameFinalWindow = "final-window"
	FrameError       = "error"
)

type WireMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientFrame struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	MatchID string `json:"matchId,omitempty"`
	Text    string `json:"text,omitempty"`
	Role    string `json:"role,omitempty"`
}

type ServerFrame struct {
	Type             string        `json:"type"`
	Messages         []WireMessage `json:"messages,omitempty"`
	Message          *WireMessage  `json:"message,omitempty"`
	MatchID          string        `json:"matchId,omitempty"`
	TimeLimitSeconds int           `json:"timeLimitSeconds,omitempty"`
	Error            string        `json:"error,omitempty"`
}

func FromMessage(m session.Message) WireMessage {
	return WireMessage{ID: m.ID, Text: m.Text, Sender: string(m.Sender), Timestamp: m.Timestamp}
}

func ToMessage(w WireMessage) session.Message {
	return session.Message{ID: w.ID, Text: w.Text, Sender: session.Role(w.Sender), Timestamp: w.Timestamp}
}

func ToMessages(ws []WireMessage) []session.Message {
	out := make([]session.Message, len(ws))
	for i, w := range ws {
		out[i] = ToMessage(w)
	}
	return out
}

// REST shapes for the remote-authority contract.

type MatchRequest struct {
	UserID string `json:"userId"`
}

type MatchAssignment struct {
	MatchID   string `json:"matchId"`
	Role      string `json:"role"`
	MatchKind string `json:"matchKind"`
}

type GuessRequest struct {
	UserID string `json:"userId"`
	Choice string `json:"choice"`
}

// GuessResponse mirrors the authority's reply. Fields are pointers because
// clients must tolerate any of them being absent.
type GuessResponse struct {
	Score        *int   `json:"score,omitempty"`
	OpponentType string `json:"opponentType,omitempty"`
	IsCorrect    *bool  `json:"isCorrect,omitempty"`
}
