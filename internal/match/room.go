// Package match hosts the server side of a session: a relay room enforcing
// the same turn and quota rules the client derives locally.
package match

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/types"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	UserID string
	Outbox chan types.ServerFrame // where this client wants to receive frames
}

func (Join) isRoomMsg() {}

type Leave struct{ UserID string }

func (Leave) isRoomMsg() {}

type SendText struct {
	UserID string
	Text   string
}

func (SendText) isRoomMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// agentReply is posted back into the inbox by the canned opponent's timer.
type agentReply struct{ text string }

func (agentReply) isRoomMsg() {}

type View struct {
	MatchID    string
	Kind       session.MatchKind
	Roles      map[string]session.Role
	Messages   []session.Message
	NumClients int
}

type Options struct {
	// FinalWindowSeconds is broadcast once the exchange completes.
	FinalWindowSeconds int
	// AgentDelay spaces out canned replies so the agent doesn't answer
	// inhumanly fast.
	AgentDelay time.Duration
	Logger     *zap.Logger
}

type Room struct {
	matchID string
	kind    session.MatchKind
	roles   map[string]session.Role // userID -> seat
	// agentRole is the seat played by the built-in responder, empty for
	// human-human rooms.
	agentRole session.Role
	ledger    session.Ledger
	clients   map[string]chan types.ServerFrame
	inbox     chan Msg
	opts      Options
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRoom starts a room actor. For human-agent rooms the responder seat is
// played by the built-in canned opponent.
func NewRoom(parent context.Context, matchID string, kind session.MatchKind, roles map[string]session.Role, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	if opts.FinalWindowSeconds <= 0 {
		opts.FinalWindowSeconds = 30
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Room{
		matchID: matchID,
		kind:    kind,
		roles:   roles,
		clients: make(map[string]chan types.ServerFrame),
		inbox:   make(chan Msg, 64), // small buffer
		opts:    opts,
		logger:  logger.With(zap.String("match_id", matchID)),
		ctx:     ctx,
		cancel:  cancel,
	}
	if kind == session.KindHumanAgent {
		r.agentRole = session.RoleResponder
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) ID() string { return r.matchID }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.UserID] = msg.Outbox
				// Full snapshot immediately, so a (re)join never misses
				// earlier traffic.
				msg.Outbox <- types.ServerFrame{Type: types.FrameHistory, Messages: r.wireHistory()}
				if r.ledger.Len() >= session.MaxTotal {
					msg.Outbox <- r.finalWindowFrame()
				}

			case Leave:
				delete(r.clients, msg.UserID)

			case SendText:
				role, ok := r.roles[msg.UserID]
				if !ok {
					r.sendError(msg.UserID, "not a participant")
					break
				}
				if err := r.relay(role, msg.Text); err != nil {
					r.sendError(msg.UserID, err.Error())
				}

			case agentReply:
				if r.agentRole == "" {
					break
				}
				if err := r.relay(r.agentRole, msg.text); err != nil {
					r.logger.Warn("agent reply dropped", zap.Error(err))
				}

			case GetView:
				// test-only: reflect internal state without data races
				roles := make(map[string]session.Role, len(r.roles))
				for id, role := range r.roles {
					roles[id] = role
				}
				msg.Reply <- View{
					MatchID:    r.matchID,
					Kind:       r.kind,
					Roles:      roles,
					Messages:   r.ledger.Messages(),
					NumClients: len(r.clients),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// relay validates one message against turn order and quota, appends it and
// broadcasts it. The same rules the client enforces locally apply here
// authoritatively.
func (r *Room) relay(role session.Role, text string) error {
	if strings.TrimSpace(text) == "" {
		return session.ErrEmptyMessage
	}
	if len(text) > session.MaxMessageLen {
		return session.ErrMessageTooLong
	}
	if r.ledger.Len() >= session.MaxTotal {
		return session.ErrQuotaExhausted
	}
	if session.ExpectedSender(r.ledger.Len()) != role {
		return session.ErrNotYourTurn
	}
	if sent, _ := r.ledger.Counts(role); sent >= session.MaxPerParty {
		return session.ErrQuotaExhausted
	}

	m := session.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    role,
		Timestamp: time.Now().UTC(),
	}
	if err := r.ledger.Append(m); err != nil {
		return err
	}

	wire := types.FromMessage(m)
	r.broadcast(types.ServerFrame{Type: types.FrameMessage, Message: &wire})

	if r.ledger.Len() >= session.MaxTotal {
		r.broadcast(r.finalWindowFrame())
		return nil
	}

	if r.agentRole != "" && session.ExpectedSender(r.ledger.Len()) == r.agentRole {
		r.scheduleAgentReply()
	}
	return nil
}

func (r *Room) scheduleAgentReply() {
	_, received := r.ledger.Counts(r.agentRole)
	reply := cannedReply(received)
	delay := r.opts.AgentDelay
	if delay <= 0 {
		delay = time.Second
	}
	time.AfterFunc(delay, func() {
		select {
		case r.inbox <- agentReply{text: reply}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) finalWindowFrame() types.ServerFrame {
	return types.ServerFrame{
		Type:             types.FrameFinalWindow,
		MatchID:          r.matchID,
		TimeLimitSeconds: r.opts.FinalWindowSeconds,
	}
}

func (r *Room) wireHistory() []types.WireMessage {
	msgs := r.ledger.Messages()
	out := make([]types.WireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = types.FromMessage(m)
	}
	return out
}

func (r *Room) sendError(userID, text string) {
	ch, ok := r.clients[userID]
	if !ok {
		return
	}
	select {
	case ch <- types.ServerFrame{Type: types.FrameError, Error: text}:
	default:
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch) // tell client no more frames
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) broadcast(frame types.ServerFrame) {
	for id, ch := range r.clients {
		select {
		case ch <- frame:
			// ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(r.clients, id)
		}
	}
}
