package session

import (
	"context"

	"go.uber.org/zap"
)

// GuessResult is the authority's response to a submitted guess. Every field
// is optional on the wire; absent fields are defaulted during reconciliation.
type GuessResult struct {
	Score        *int
	OpponentKind Guess // "" when absent
	IsCorrect    *bool
}

// Authority is the remote side of the guess contract.
type Authority interface {
	SubmitGuess(ctx context.Context, matchID, userID string, choice Guess) (GuessResult, error)
}

// Reconciler submits a guess and reconciles the authoritative response
// against the locally computed expectation. No path out of Resolve is
// fatal: remote failure falls back to fully local values.
type Reconciler struct {
	authority Authority
	logger    *zap.Logger
}

func NewReconciler(authority Authority, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{authority: authority, logger: logger}
}

// Resolve produces the session's final outcome. The displayed score is
// always derived from the displayed correctness flag, so the two can never
// disagree, whichever side supplied them.
func (r *Reconciler) Resolve(ctx context.Context, matchID, userID string, choice Guess, kind MatchKind, receivedByLocal int) Outcome {
	res, err := r.authority.SubmitGuess(ctx, matchID, userID, choice)
	if err != nil {
		opponent := kind.Opponent()
		correct := choice == opponent
		r.logger.Warn("remote authority unavailable, resolving locally",
			zap.String("match_id", matchID),
			zap.Error(err))
		return Outcome{
			Choice:       choice,
			OpponentKind: opponent,
			IsCorrect:    correct,
			Score:        FallbackScore(correct, receivedByLocal),
			Fallback:     true,
		}
	}

	opponent := res.OpponentKind
	if opponent == "" {
		opponent = GuessAgent
	}
	correct := choice == opponent
	if res.IsCorrect != nil {
		correct = *res.IsCorrect
	}

	expected := ExpectedScore(correct, receivedByLocal)
	returned := 0
	if res.Score != nil {
		returned = *res.Score
	}

	out := Outcome{
		Choice:       choice,
		OpponentKind: opponent,
		IsCorrect:    correct,
		Score:        expected,
	}
	if returned != expected {
		// Reported, not fatal: the locally computed score wins so the
		// displayed score stays consistent with the correctness flag.
		out.Mismatch = true
		r.logger.Warn("score reconciliation mismatch",
			zap.String("match_id", matchID),
			zap.Int("returned", returned),
			zap.Int("expected", expected),
			zap.Int("received_by_local", receivedByLocal))
	}
	return out
}
