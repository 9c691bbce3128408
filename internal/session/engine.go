package session

import (
	"strings"
	"time"
)

type Guess string

const (
	GuessHuman Guess = "human"
	GuessAgent Guess = "agent"
)

// MatchKind is the match's declared pairing, known to the authority at
// assignment time. The local party only learns the truth at resolution.
type MatchKind string

const (
	KindHumanHuman MatchKind = "human-human"
	KindHumanAgent MatchKind = "human-agent"
)

// Opponent returns the classification implied by the declared kind, used
// only on the local fallback path.
func (k MatchKind) Opponent() Guess {
	if k == KindHumanHuman {
		return GuessHuman
	}
	return GuessAgent
}

type Phase string

const (
	PhaseConversing     Phase = "conversing"
	PhaseAwaitingPrompt Phase = "awaiting-guess-prompt"
	PhaseGuessRecorded  Phase = "guess-recorded"
	PhaseResolving      Phase = "resolving"
	PhaseResolved       Phase = "resolved"
)

type GuessRecord struct {
	Choice      Guess     `json:"choice"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// State is the full session state for one match. Apply is the only producer
// of new states; the orchestrator is the only writer.
type State struct {
	MatchID      string       `json:"matchId"`
	LocalRole    Role         `json:"localRole"`
	Kind         MatchKind    `json:"matchKind"`
	Ledger       Ledger       `json:"-"`
	Guess        *GuessRecord `json:"guess,omitempty"`
	Deadline     Deadline     `json:"deadline"`
	Phase        Phase        `json:"phase"`
	SendInFlight bool         `json:"sendInFlight"`
	Outcome      *Outcome     `json:"outcome,omitempty"`
}

func NewState(matchID string, localRole Role, kind MatchKind) State {
	return State{
		MatchID:   matchID,
		LocalRole: localRole,
		Kind:      kind,
		Phase:     PhaseConversing,
	}
}

type CommandType string

const (
	CmdAppendMessage  CommandType = "AppendMessage"
	CmdReplaceHistory CommandType = "ReplaceHistory"
	CmdStartDeadline  CommandType = "StartDeadline"
	CmdTick           CommandType = "Tick"
	CmdSendText       CommandType = "SendText"
	CmdPromptGuess    CommandType = "PromptGuess"
	CmdSubmitGuess    CommandType = "SubmitGuess"
	CmdOutcomeReady   CommandType = "OutcomeReady"
)

type Command struct {
	Type    CommandType
	Message Message
	History []Message
	MatchID string // StartDeadline: ignored unless it names the active match
	Seconds int
	Text    string
	Choice  Guess
	At      time.Time
	Outcome *Outcome
}

type EventType string

const (
	EvtMessageAppended EventType = "MessageAppended"
	EvtOutOfOrder      EventType = "OutOfOrder"
	EvtHistoryReplaced EventType = "HistoryReplaced"
	EvtSendRequested   EventType = "SendRequested"
	EvtDeadlineStarted EventType = "DeadlineStarted"
	EvtDeadlineTicked  EventType = "DeadlineTicked"
	EvtGuessPromptDue  EventType = "GuessPromptDue"
	EvtGuessRecorded   EventType = "GuessRecorded"
	EvtResolutionDue   EventType = "ResolutionDue"
	EvtResolved        EventType = "Resolved"
)

type Event struct {
	Type    EventType
	Message Message
	Seconds int
	Choice  Guess
	Outcome *Outcome
}

// Apply runs one command against the session state machine. It returns the
// emitted events and the next state; on error the state is unchanged.
//
//	CmdAppendMessage  -> EvtMessageAppended (+EvtOutOfOrder) (+EvtResolutionDue)
//	CmdReplaceHistory -> EvtHistoryReplaced (+EvtResolutionDue)
//	CmdStartDeadline  -> EvtDeadlineStarted (+EvtGuessPromptDue)
//	CmdTick           -> EvtDeadlineTicked (+EvtGuessPromptDue)
//	CmdSendText       -> EvtSendRequested
//	CmdPromptGuess    -> EvtGuessPromptDue
//	CmdSubmitGuess    -> EvtGuessRecorded (+EvtResolutionDue)
//	CmdOutcomeReady   -> EvtResolved
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdAppendMessage:
		if s.Phase == PhaseResolved {
			return nil, s, ErrSessionOver
		}
		ns := s
		events := []Event{}
		if err := ns.Ledger.Append(cmd.Message); err != nil {
			// Still appended: turn state is recomputed from the actual
			// pattern rather than assumed.
			events = append(events, Event{Type: EvtOutOfOrder, Message: cmd.Message})
		}
		if cmd.Message.Sender == ns.LocalRole {
			// Echo of our own send; the ledger count takes over.
			ns.SendInFlight = false
		}
		events = append(events, Event{Type: EvtMessageAppended, Message: cmd.Message})
		events = maybeResolve(&ns, events)
		return events, ns, nil

	case CmdReplaceHistory:
		if s.Phase == PhaseResolved {
			return nil, s, ErrSessionOver
		}
		ns := s
		ns.Ledger.Replace(cmd.History)
		ns.SendInFlight = false
		events := []Event{{Type: EvtHistoryReplaced}}
		events = maybeResolve(&ns, events)
		return events, ns, nil

	case CmdStartDeadline:
		if cmd.MatchID != s.MatchID {
			// Stale signal for some other match.
			return nil, s, nil
		}
		if s.Phase == PhaseResolving || s.Phase == PhaseResolved {
			return nil, s, nil
		}
		ns := s
		var prompt bool
		ns.Deadline, prompt = startDeadline(cmd.Seconds)
		events := []Event{{Type: EvtDeadlineStarted, Seconds: cmd.Seconds}}
		events = maybePrompt(&ns, events, prompt)
		return events, ns, nil

	case CmdTick:
		if !s.Deadline.Active {
			return nil, s, nil
		}
		ns := s
		var prompt bool
		ns.Deadline, prompt = ns.Deadline.tick()
		events := []Event{{Type: EvtDeadlineTicked, Seconds: ns.Deadline.SecondsRemaining}}
		events = maybePrompt(&ns, events, prompt)
		return events, ns, nil

	case CmdSendText:
		if s.Phase == PhaseResolving || s.Phase == PhaseResolved {
			return nil, s, ErrSessionOver
		}
		text := cmd.Text
		if strings.TrimSpace(text) == "" {
			return nil, s, ErrEmptyMessage
		}
		if len(text) > MaxMessageLen {
			return nil, s, ErrMessageTooLong
		}
		if sent, _ := s.Ledger.Counts(s.LocalRole); sent >= MaxPerParty {
			return nil, s, ErrQuotaExhausted
		}
		if s.Turn() != TurnLocal {
			return nil, s, ErrNotYourTurn
		}
		ns := s
		// Sending is irrevocable: the turn is forfeited now, the ledger
		// catches up when the transport echoes the message back.
		ns.SendInFlight = true
		ev := Event{Type: EvtSendRequested, Message: Message{Text: text, Sender: s.LocalRole, Timestamp: cmd.At}}
		return []Event{ev}, ns, nil

	case CmdPromptGuess:
		if s.Guess != nil || s.Phase == PhaseResolving || s.Phase == PhaseResolved {
			return nil, s, ErrAlreadyGuessed
		}
		if _, received := s.Ledger.Counts(s.LocalRole); received == 0 {
			return nil, s, ErrGuessTooEarly
		}
		if s.Phase != PhaseConversing {
			return nil, s, nil
		}
		ns := s
		ns.Phase = PhaseAwaitingPrompt
		return []Event{{Type: EvtGuessPromptDue}}, ns, nil

	case CmdSubmitGuess:
		if s.Guess != nil || s.Phase == PhaseResolving || s.Phase == PhaseResolved {
			return nil, s, ErrAlreadyGuessed
		}
		if _, received := s.Ledger.Counts(s.LocalRole); received == 0 {
			return nil, s, ErrGuessTooEarly
		}
		ns := s
		ns.Guess = &GuessRecord{Choice: cmd.Choice, SubmittedAt: cmd.At}
		ns.Phase = PhaseGuessRecorded
		events := []Event{{Type: EvtGuessRecorded, Choice: cmd.Choice}}
		events = maybeResolve(&ns, events)
		return events, ns, nil

	case CmdOutcomeReady:
		if s.Phase == PhaseResolved {
			return nil, s, ErrSessionOver
		}
		ns := s
		ns.Outcome = cmd.Outcome
		ns.Phase = PhaseResolved
		ns.Deadline.Active = false
		return []Event{{Type: EvtResolved, Outcome: cmd.Outcome}}, ns, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// maybeResolve moves to resolving once the ledger holds the full exchange
// and a guess is on record, whichever arrived last. This is the single
// trigger for the deferred guess submission, so it cannot fire twice.
func maybeResolve(ns *State, events []Event) []Event {
	if ns.Phase == PhaseResolving || ns.Phase == PhaseResolved {
		return events
	}
	if ns.Guess == nil || ns.Ledger.Len() < MaxTotal {
		return events
	}
	ns.Phase = PhaseResolving
	ns.Deadline.Active = false
	return append(events, Event{Type: EvtResolutionDue, Choice: ns.Guess.Choice})
}

func maybePrompt(ns *State, events []Event, prompt bool) []Event {
	if !prompt || ns.Guess != nil {
		return events
	}
	if ns.Phase == PhaseConversing {
		ns.Phase = PhaseAwaitingPrompt
	}
	return append(events, Event{Type: EvtGuessPromptDue})
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
