package session

// Outcome is the final result of a session, handed to the caller for
// display once the phase reaches resolved.
type Outcome struct {
	Choice       Guess `json:"choice"`
	OpponentKind Guess `json:"opponentKind"`
	IsCorrect    bool  `json:"isCorrect"`
	Score        int   `json:"score"`
	// Mismatch marks that the authority returned a score disagreeing with
	// the canonical formula and the local value was displayed instead.
	Mismatch bool `json:"mismatch,omitempty"`
	// Fallback marks that the authority was unreachable and every field
	// was computed locally.
	Fallback bool `json:"fallback,omitempty"`
}

// ExpectedScore is the canonical scoring formula: a correct guess earns
// 4 minus the messages received at guess time (clamped to 1..3, so 1..3
// points), an incorrect guess earns nothing.
func ExpectedScore(correct bool, receivedByLocal int) int {
	if !correct {
		return 0
	}
	return max(1, 4-clamp(receivedByLocal, 1, MaxPerParty))
}

// FallbackScore is the variant used when the authority is unreachable,
// matching the local computation: no lower clamp on the received count
// before subtraction, but never below 1 for a correct guess.
func FallbackScore(correct bool, receivedByLocal int) int {
	if !correct {
		return 0
	}
	return max(1, 4-receivedByLocal)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
