package session

import "time"

const (
	// Per-party send quota and the total cap derived from it.
	MaxPerParty = 3
	MaxTotal    = 2 * MaxPerParty

	MaxMessageLen = 1000
)

type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

func (r Role) Other() Role {
	if r == RoleInitiator {
		return RoleResponder
	}
	return RoleInitiator
}

type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Role      `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger is the ordered message history for one match. Append order is
// significant: sequence position alone determines turn attribution.
type Ledger struct {
	msgs []Message
}

func (l Ledger) Len() int { return len(l.msgs) }

// ExpectedSender returns who should send message n+1 given n messages so
// far. The initiator moves first and turn alternates strictly by parity.
func ExpectedSender(n int) Role {
	if n%2 == 0 {
		return RoleInitiator
	}
	return RoleResponder
}

// Append inserts at the end. A message whose sender contradicts the expected
// turn is still appended so displayable history is never lost, but the
// violation is reported via ErrOutOfOrder.
func (l *Ledger) Append(m Message) error {
	expected := ExpectedSender(len(l.msgs))
	l.msgs = append(l.msgs[:len(l.msgs):len(l.msgs)], m)
	if m.Sender != expected {
		return ErrOutOfOrder
	}
	return nil
}

// Replace swaps in a full history snapshot, e.g. on (re)join.
func (l *Ledger) Replace(msgs []Message) {
	l.msgs = append([]Message(nil), msgs...)
}

// Counts returns how many ledger messages each side has sent, relative to
// the given local role.
func (l Ledger) Counts(local Role) (sentByLocal, receivedByLocal int) {
	for _, m := range l.msgs {
		if m.Sender == local {
			sentByLocal++
		} else {
			receivedByLocal++
		}
	}
	return sentByLocal, receivedByLocal
}

// Messages returns a copy of the history.
func (l Ledger) Messages() []Message {
	return append([]Message(nil), l.msgs...)
}
