// Package transport adapts a websocket connection to the session layer's
// abstract event channel.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/types"
)

const writeTimeout = 3 * time.Second

type WS struct {
	conn   *websocket.Conn
	events chan session.Inbound
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

var _ session.Transport = (*WS)(nil)

// Dial connects to the relay and starts decoding inbound frames.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*WS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(context.Background())
	w := &WS{
		conn:   conn,
		events: make(chan session.Inbound, 16),
		logger: logger,
		ctx:    wctx,
		cancel: cancel,
	}
	go w.readLoop()
	return w, nil
}

func (w *WS) Events() <-chan session.Inbound { return w.events }

func (w *WS) Join(ctx context.Context, userID, matchID string) error {
	return w.write(ctx, types.ClientFrame{Type: types.FrameJoin, UserID: userID, MatchID: matchID})
}

func (w *WS) Leave(ctx context.Context, userID, matchID string) error {
	return w.write(ctx, types.ClientFrame{Type: types.FrameLeave, UserID: userID, MatchID: matchID})
}

func (w *WS) Send(ctx context.Context, userID, matchID, text string, role session.Role) error {
	return w.write(ctx, types.ClientFrame{
		Type:    types.FrameSend,
		UserID:  userID,
		MatchID: matchID,
		Text:    text,
		Role:    string(role),
	})
}

func (w *WS) Close() error {
	w.cancel()
	return w.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (w *WS) write(ctx context.Context, frame types.ClientFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return w.conn.Write(wctx, websocket.MessageText, payload)
}

func (w *WS) readLoop() {
	defer close(w.events)
	for {
		_, data, err := w.conn.Read(w.ctx)
		if err != nil {
			// Treat clean close/going-away as normal:
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("websocket read failed", zap.Error(err))
			return
		}

		var frame types.ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			w.logger.Warn("bad frame", zap.Error(err))
			continue
		}

		ev, ok := toInbound(frame)
		if !ok {
			if frame.Type == types.FrameError {
				w.logger.Warn("relay error", zap.String("error", frame.Error))
			}
			continue
		}

		select {
		case w.events <- ev:
		case <-w.ctx.Done():
			return
		}
	}
}

func toInbound(frame types.ServerFrame) (session.Inbound, bool) {
	switch frame.Type {
	case types.FrameHistory:
		return session.Inbound{Type: session.InboundHistory, Messages: types.ToMessages(frame.Messages)}, true
	case types.FrameMessage:
		if frame.Message == nil {
			return session.Inbound{}, false
		}
		return session.Inbound{Type: session.InboundMessage, Message: types.ToMessage(*frame.Message)}, true
	case types.FrameFinalWindow:
		return session.Inbound{
			Type:             session.InboundFinalWindow,
			MatchID:          frame.MatchID,
			TimeLimitSeconds: frame.TimeLimitSeconds,
		}, true
	default:
		return session.Inbound{}, false
	}
}
