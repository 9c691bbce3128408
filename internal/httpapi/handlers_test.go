package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tbradley9/turing-match/internal/httpapi"
	"github.com/tbradley9/turing-match/internal/hub"
	"github.com/tbradley9/turing-match/internal/match"
	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/types"
)

func newTestServer(t *testing.T, opts hub.Options) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts.Logger = zaptest.NewLogger(t)
	h := hub.NewHub(ctx, opts)
	srv := httptest.NewServer(httpapi.SetupRoutes(h, opts.Logger))
	t.Cleanup(srv.Close)
	return srv, h
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRequestMatch_RequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t, hub.Options{PairWindow: time.Minute})

	resp := postJSON(t, srv.URL+"/matches", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestMatch_AgentFallback(t *testing.T) {
	srv, _ := newTestServer(t, hub.Options{PairWindow: 10 * time.Millisecond})

	resp := postJSON(t, srv.URL+"/matches", types.MatchRequest{UserID: "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var a types.MatchAssignment
	decodeInto(t, resp, &a)
	require.NotEmpty(t, a.MatchID)
	require.Equal(t, string(session.RoleInitiator), a.Role)
	require.Equal(t, string(session.KindHumanAgent), a.MatchKind)
}

func TestSubmitGuess_Validation(t *testing.T) {
	srv, _ := newTestServer(t, hub.Options{PairWindow: 10 * time.Millisecond})

	// Unknown match.
	resp := postJSON(t, srv.URL+"/matches/nope/guess", types.GuessRequest{UserID: "u1", Choice: "agent"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Bad choice.
	resp = postJSON(t, srv.URL+"/matches/nope/guess", types.GuessRequest{UserID: "u1", Choice: "robot"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing user.
	resp = postJSON(t, srv.URL+"/matches/nope/guess", types.GuessRequest{Choice: "agent"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Real match, but a stranger guessing.
	assign := requestAgentMatch(t, srv, "u1")
	resp = postJSON(t, srv.URL+"/matches/"+assign.MatchID+"/guess", types.GuessRequest{UserID: "intruder", Choice: "agent"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func requestAgentMatch(t *testing.T, srv *httptest.Server, userID string) types.MatchAssignment {
	t.Helper()
	resp := postJSON(t, srv.URL+"/matches", types.MatchRequest{UserID: userID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var a types.MatchAssignment
	decodeInto(t, resp, &a)
	return a
}

// getRoom fetches the live room straight from the hub so tests can drive the
// conversation without a websocket.
func getRoom(t *testing.T, h *hub.Hub, matchID string) *match.Room {
	t.Helper()
	reply := make(chan *match.Room, 1)
	h.Inbox() <- hub.GetRoom{MatchID: matchID, Reply: reply}
	room := <-reply
	require.NotNil(t, room)
	return room
}

func waitForMessages(t *testing.T, room *match.Room, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		reply := make(chan match.View, 1)
		room.Inbox() <- match.GetView{Reply: reply}
		if view := <-reply; len(view.Messages) >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("room never reached %d messages", n)
}

func TestSubmitGuess_ScoresByReceivedCount(t *testing.T) {
	srv, h := newTestServer(t, hub.Options{
		PairWindow: 5 * time.Millisecond,
		AgentDelay: time.Millisecond,
	})

	assign := requestAgentMatch(t, srv, "u1")
	room := getRoom(t, h, assign.MatchID)

	// One exchange: human sends, agent answers. One received message means
	// the riskiest possible guess.
	room.Inbox() <- match.SendText{UserID: "u1", Text: "hey"}
	waitForMessages(t, room, 2)

	resp := postJSON(t, srv.URL+"/matches/"+assign.MatchID+"/guess", types.GuessRequest{UserID: "u1", Choice: "agent"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scored types.GuessResponse
	decodeInto(t, resp, &scored)
	require.NotNil(t, scored.Score)
	require.NotNil(t, scored.IsCorrect)
	require.True(t, *scored.IsCorrect)
	require.Equal(t, 3, *scored.Score)
	require.Equal(t, "agent", scored.OpponentType)

	// A wrong guess at the same point scores zero.
	resp = postJSON(t, srv.URL+"/matches/"+assign.MatchID+"/guess", types.GuessRequest{UserID: "u1", Choice: "human"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &scored)
	require.False(t, *scored.IsCorrect)
	require.Equal(t, 0, *scored.Score)
}

func TestSubmitGuess_FullExchangeScoresOne(t *testing.T) {
	srv, h := newTestServer(t, hub.Options{
		PairWindow: 5 * time.Millisecond,
		AgentDelay: time.Millisecond,
	})

	assign := requestAgentMatch(t, srv, "u1")
	room := getRoom(t, h, assign.MatchID)

	for i := 0; i < session.MaxPerParty; i++ {
		waitForMessages(t, room, i*2)
		room.Inbox() <- match.SendText{UserID: "u1", Text: "turn"}
		waitForMessages(t, room, i*2+2)
	}

	resp := postJSON(t, srv.URL+"/matches/"+assign.MatchID+"/guess", types.GuessRequest{UserID: "u1", Choice: "agent"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scored types.GuessResponse
	decodeInto(t, resp, &scored)
	require.True(t, *scored.IsCorrect)
	require.Equal(t, 1, *scored.Score)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, hub.Options{PairWindow: time.Minute})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
