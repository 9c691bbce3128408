package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Msg interface{ isSessionMsg() }

type Subscribe struct {
	ClientID string
	Outbox   chan Snapshot // where this subscriber wants to receive snapshots
}

func (Subscribe) isSessionMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isSessionMsg() {}

type SendText struct{ Text string }

func (SendText) isSessionMsg() {}

// PromptGuess is the user asking to guess early, before the deadline prompt.
type PromptGuess struct{}

func (PromptGuess) isSessionMsg() {}

type SubmitGuess struct{ Choice Guess }

func (SubmitGuess) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

// Leave ends the session: the countdown is cancelled, subscriptions are
// detached and no further mutation happens.
type Leave struct{}

func (Leave) isSessionMsg() {}

type fromTransport struct{ ev Inbound }

func (fromTransport) isSessionMsg() {}

type outcomeReady struct{ outcome Outcome }

func (outcomeReady) isSessionMsg() {}

type Snapshot struct {
	Version int
	State   State
}

type View struct {
	Version        int
	NumSubscribers int
	State          State
}

// Orchestrator composes ledger, turn, deadline and reconciliation into one
// single-goroutine actor. Every mutation is sequenced through its inbox, so
// the state machine never sees concurrent writes.
type Orchestrator struct {
	inbox      chan Msg
	state      State
	version    int
	subs       map[string]chan Snapshot
	transport  Transport
	reconciler *Reconciler
	logger     *zap.Logger
	userID     string

	ticker *time.Ticker
	tickC  <-chan time.Time

	result chan Outcome
	ctx    context.Context
	cancel context.CancelFunc
}

type Options struct {
	UserID     string
	MatchID    string
	LocalRole  Role
	Kind       MatchKind
	Transport  Transport
	Reconciler *Reconciler
	Logger     *zap.Logger
}

// NewOrchestrator joins the match room and starts the session loop.
func NewOrchestrator(parent context.Context, opts Options) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(parent)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := opts.Transport.Join(ctx, opts.UserID, opts.MatchID); err != nil {
		cancel()
		return nil, err
	}

	o := &Orchestrator{
		inbox:      make(chan Msg, 64), // small buffer
		state:      NewState(opts.MatchID, opts.LocalRole, opts.Kind),
		subs:       make(map[string]chan Snapshot),
		transport:  opts.Transport,
		reconciler: opts.Reconciler,
		logger:     logger,
		userID:     opts.UserID,
		result:     make(chan Outcome, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	go o.pump()
	go o.loop()
	return o, nil
}

// Inbox exposes the actor mailbox for callers and tests.
func (o *Orchestrator) Inbox() chan<- Msg { return o.inbox }

// Result delivers the final outcome once the session resolves.
func (o *Orchestrator) Result() <-chan Outcome { return o.result }

// pump forwards transport events into the inbox so the loop stays the only
// goroutine touching state.
func (o *Orchestrator) pump() {
	for {
		select {
		case <-o.ctx.Done():
			return
		case ev, ok := <-o.transport.Events():
			if !ok {
				return
			}
			select {
			case o.inbox <- fromTransport{ev: ev}:
			case <-o.ctx.Done():
				return
			}
		}
	}
}

func (o *Orchestrator) loop() {
	for {
		select {
		case <-o.ctx.Done():
			o.shutdown(false)
			return

		case <-o.tickC:
			o.step(Command{Type: CmdTick})

		case m := <-o.inbox:
			switch msg := m.(type) {
			case Subscribe:
				o.subs[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: o.version, State: o.state}

			case Unsubscribe:
				delete(o.subs, msg.ClientID)

			case fromTransport:
				o.step(commandFor(msg.ev))

			case SendText:
				o.step(Command{Type: CmdSendText, Text: msg.Text, At: time.Now().UTC()})

			case PromptGuess:
				o.step(Command{Type: CmdPromptGuess})

			case SubmitGuess:
				o.step(Command{Type: CmdSubmitGuess, Choice: msg.Choice, At: time.Now().UTC()})

			case outcomeReady:
				out := msg.outcome
				o.step(Command{Type: CmdOutcomeReady, Outcome: &out})

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{Version: o.version, NumSubscribers: len(o.subs), State: o.state}

			case Leave:
				o.shutdown(true)
				return
			}
		}
	}
}

func commandFor(ev Inbound) Command {
	switch ev.Type {
	case InboundHistory:
		return Command{Type: CmdReplaceHistory, History: ev.Messages}
	case InboundMessage:
		return Command{Type: CmdAppendMessage, Message: ev.Message}
	case InboundFinalWindow:
		return Command{Type: CmdStartDeadline, MatchID: ev.MatchID, Seconds: ev.TimeLimitSeconds}
	default:
		return Command{}
	}
}

// step applies one command and reacts to whatever it emitted. Rejections
// are no-ops with a defined fallback, never fatal to the loop.
func (o *Orchestrator) step(cmd Command) {
	events, next, err := Apply(o.state, cmd)
	if err != nil {
		o.logger.Warn("command rejected",
			zap.String("command", string(cmd.Type)),
			zap.Error(err))
		return
	}
	o.state = next
	if len(events) == 0 {
		return
	}
	o.version++
	o.react(events)
	o.broadcast(Snapshot{Version: o.version, State: o.state})
}

func (o *Orchestrator) react(events []Event) {
	for _, ev := range events {
		switch ev.Type {
		case EvtSendRequested:
			ctx, cancel := context.WithTimeout(o.ctx, 3*time.Second)
			err := o.transport.Send(ctx, o.userID, o.state.MatchID, ev.Message.Text, o.state.LocalRole)
			cancel()
			if err != nil {
				// Release the latch so the turn isn't stuck on a message
				// that never left.
				o.state.SendInFlight = false
				o.logger.Warn("send failed", zap.Error(err))
			}

		case EvtOutOfOrder:
			o.logger.Warn("out-of-order message appended",
				zap.String("message_id", ev.Message.ID),
				zap.String("sender", string(ev.Message.Sender)))

		case EvtDeadlineStarted:
			o.startTicker()

		case EvtDeadlineTicked:
			if !o.state.Deadline.Active {
				o.stopTicker()
			}

		case EvtGuessPromptDue:
			o.logger.Info("guess prompt due",
				zap.Int("seconds_remaining", o.state.Deadline.SecondsRemaining))

		case EvtResolutionDue:
			o.stopTicker()
			_, received := o.state.Ledger.Counts(o.state.LocalRole)
			o.resolveAsync(ev.Choice, o.state.MatchID, o.state.Kind, received)

		case EvtResolved:
			o.stopTicker()
			if ev.Outcome != nil {
				select {
				case o.result <- *ev.Outcome:
				default:
				}
			}
		}
	}
}

// resolveAsync performs the network half of resolution off the loop and
// posts the outcome back through the inbox, keeping all mutation sequenced.
func (o *Orchestrator) resolveAsync(choice Guess, matchID string, kind MatchKind, received int) {
	go func() {
		ctx, cancel := context.WithTimeout(o.ctx, 10*time.Second)
		defer cancel()
		out := o.reconciler.Resolve(ctx, matchID, o.userID, choice, kind, received)
		select {
		case o.inbox <- outcomeReady{outcome: out}:
		case <-o.ctx.Done():
		}
	}()
}

func (o *Orchestrator) startTicker() {
	o.stopTicker()
	o.ticker = time.NewTicker(time.Second)
	o.tickC = o.ticker.C
}

func (o *Orchestrator) stopTicker() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
		o.tickC = nil
	}
}

func (o *Orchestrator) shutdown(leave bool) {
	o.stopTicker()
	if leave {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := o.transport.Leave(ctx, o.userID, o.state.MatchID); err != nil {
			o.logger.Warn("leave failed", zap.Error(err))
		}
		cancel()
	}
	for id, ch := range o.subs {
		close(ch) // tell subscriber no more snapshots
		delete(o.subs, id)
	}
	o.cancel()
}

func (o *Orchestrator) broadcast(snap Snapshot) {
	for id, ch := range o.subs {
		select {
		case ch <- snap:
			// ok
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(o.subs, id)
		}
	}
}
