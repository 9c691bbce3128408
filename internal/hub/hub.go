// Package hub owns the set of live match rooms and pairs seekers into them.
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/match"
	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/types"
)

type HubMsg interface{ isHubMsg() }

// RequestMatch pairs the user with the waiting seeker if there is one, or
// parks them until the pair window elapses and an agent match is started.
type RequestMatch struct {
	UserID string
	Reply  chan types.MatchAssignment
}

type GetRoom struct {
	MatchID string
	Reply   chan *match.Room
}

type RemoveRoom struct {
	MatchID string
}

type ShutdownHub struct{}

// pairTimeout fires when a parked seeker has waited out the pair window.
type pairTimeout struct{ userID string }

func (RequestMatch) isHubMsg() {}
func (GetRoom) isHubMsg()      {}
func (RemoveRoom) isHubMsg()   {}
func (ShutdownHub) isHubMsg()  {}
func (pairTimeout) isHubMsg()  {}

type seeker struct {
	userID string
	reply  chan types.MatchAssignment
}

type Options struct {
	// PairWindow is how long a seeker waits for a human opponent before
	// the hub starts a human-agent match instead.
	PairWindow         time.Duration
	FinalWindowSeconds int
	AgentDelay         time.Duration
	Logger             *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*match.Room
	waiting *seeker
	opts    Options
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)

	if opts.PairWindow <= 0 {
		opts.PairWindow = 3 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*match.Room),
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case RequestMatch:
				h.handleRequest(msg)

			case pairTimeout:
				// Only meaningful if that seeker is still parked.
				if h.waiting == nil || h.waiting.userID != msg.userID {
					break
				}
				parked := h.waiting
				h.waiting = nil
				h.startRoom(session.KindHumanAgent, parked, nil)

			case GetRoom:
				msg.Reply <- h.rooms[msg.MatchID] // may be nil

			case RemoveRoom:
				if room := h.rooms[msg.MatchID]; room != nil {
					room.Inbox() <- match.Shutdown{}
					delete(h.rooms, msg.MatchID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handleRequest(msg RequestMatch) {
	if h.waiting != nil && h.waiting.userID == msg.UserID {
		// Same user asking again: keep them parked, refresh the reply.
		h.waiting.reply = msg.Reply
		return
	}

	if h.waiting != nil {
		parked := h.waiting
		h.waiting = nil
		h.startRoom(session.KindHumanHuman, parked, &seeker{userID: msg.UserID, reply: msg.Reply})
		return
	}

	h.waiting = &seeker{userID: msg.UserID, reply: msg.Reply}
	userID := msg.UserID
	time.AfterFunc(h.opts.PairWindow, func() {
		select {
		case h.inbox <- pairTimeout{userID: userID}:
		case <-h.ctx.Done():
		}
	})
}

// startRoom creates the room and answers the seekers. The first (longest
// waiting) seeker takes the initiator seat.
func (h *Hub) startRoom(kind session.MatchKind, first, second *seeker) {
	matchID := uuid.NewString()

	roles := map[string]session.Role{first.userID: session.RoleInitiator}
	if second != nil {
		roles[second.userID] = session.RoleResponder
	}

	room := match.NewRoom(h.ctx, matchID, kind, roles, match.Options{
		FinalWindowSeconds: h.opts.FinalWindowSeconds,
		AgentDelay:         h.opts.AgentDelay,
		Logger:             h.logger,
	})
	h.rooms[matchID] = room

	h.logger.Info("match started",
		zap.String("match_id", matchID),
		zap.String("kind", string(kind)))

	first.reply <- types.MatchAssignment{
		MatchID:   matchID,
		Role:      string(session.RoleInitiator),
		MatchKind: string(kind),
	}
	if second != nil {
		second.reply <- types.MatchAssignment{
			MatchID:   matchID,
			Role:      string(session.RoleResponder),
			MatchKind: string(kind),
		}
	}
}

func (h *Hub) shutdown() {
	for id, room := range h.rooms {
		room.Inbox() <- match.Shutdown{}
		delete(h.rooms, id)
	}
	h.cancel()
}
