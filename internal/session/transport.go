package session

import "context"

type InboundType string

const (
	InboundHistory     InboundType = "history"
	InboundMessage     InboundType = "message"
	InboundFinalWindow InboundType = "final-window"
)

// Inbound is one event delivered by the transport. Events are applied to
// the session strictly in the order the transport delivers them.
type Inbound struct {
	Type             InboundType
	Messages         []Message // history
	Message          Message   // message
	MatchID          string    // final-window
	TimeLimitSeconds int       // final-window
}

// Transport is the persistent-connection layer, consumed here only as an
// abstract event channel plus outbound commands.
type Transport interface {
	Join(ctx context.Context, userID, matchID string) error
	Leave(ctx context.Context, userID, matchID string) error
	Send(ctx context.Context, userID, matchID, text string, role Role) error
	Events() <-chan Inbound
}
