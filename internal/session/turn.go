package session

type Turn string

const (
	TurnLocal  Turn = "local"
	TurnRemote Turn = "remote"
)

// Turn derives whose turn it is from ledger parity. A party that has
// exhausted its quota is never on turn, and a send that is still in flight
// forfeits the turn until the transport echoes it back.
func (s State) Turn() Turn {
	if ExpectedSender(s.Ledger.Len()) != s.LocalRole {
		return TurnRemote
	}
	sent, _ := s.Ledger.Counts(s.LocalRole)
	if sent >= MaxPerParty || s.SendInFlight {
		return TurnRemote
	}
	return TurnLocal
}

// CanSend reports whether a send would currently be accepted.
func (s State) CanSend() bool {
	if s.Phase == PhaseResolving || s.Phase == PhaseResolved {
		return false
	}
	return s.Turn() == TurnLocal
}
