// Package authority is the HTTP client side of the remote-authority
// contract: match assignment and guess scoring.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/types"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ session.Authority = (*Client)(nil)

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Assignment is the authority's answer to a match request.
type Assignment struct {
	MatchID   string
	LocalRole session.Role
	Kind      session.MatchKind
}

// RequestMatch asks the authority to pair the user into a match.
func (c *Client) RequestMatch(ctx context.Context, userID string) (Assignment, error) {
	var resp types.MatchAssignment
	err := c.post(ctx, "/matches", types.MatchRequest{UserID: userID}, &resp)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{
		MatchID:   resp.MatchID,
		LocalRole: session.Role(resp.Role),
		Kind:      session.MatchKind(resp.MatchKind),
	}, nil
}

// SubmitGuess sends the guess for scoring. Response fields may be absent;
// the reconciler owns the defaulting.
func (c *Client) SubmitGuess(ctx context.Context, matchID, userID string, choice session.Guess) (session.GuessResult, error) {
	var resp types.GuessResponse
	path := "/matches/" + matchID + "/guess"
	err := c.post(ctx, path, types.GuessRequest{UserID: userID, Choice: string(choice)}, &resp)
	if err != nil {
		return session.GuessResult{}, err
	}
	return session.GuessResult{
		Score:        resp.Score,
		OpponentKind: session.Guess(resp.OpponentType),
		IsCorrect:    resp.IsCorrect,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("authority returned %s for %s", resp.Status, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
