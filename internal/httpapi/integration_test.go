package httpapi_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tbradley9/turing-match/internal/authority"
	"github.com/tbradley9/turing-match/internal/hub"
	"github.com/tbradley9/turing-match/internal/session"
	"github.com/tbradley9/turing-match/internal/transport"
)

// TestEndToEndAgentMatch drives a whole session over the wire: match request,
// websocket relay, canned opponent, guess and reconciliation, using the same
// client stack the real binary uses.
func TestEndToEndAgentMatch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, _ := newTestServer(t, hub.Options{
		PairWindow: 10 * time.Millisecond,
		AgentDelay: 5 * time.Millisecond,
	})

	client := authority.NewClient(srv.URL, logger)
	assign, err := client.RequestMatch(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, session.KindHumanAgent, assign.Kind)
	require.Equal(t, session.RoleInitiator, assign.LocalRole)

	wsURL := srv.URL + "/ws?matchId=" + assign.MatchID + "&userId=u1"
	tr, err := transport.Dial(ctx, wsURL, logger)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	o, err := session.NewOrchestrator(ctx, session.Options{
		UserID:     "u1",
		MatchID:    assign.MatchID,
		LocalRole:  assign.LocalRole,
		Kind:       assign.Kind,
		Transport:  tr,
		Reconciler: session.NewReconciler(client, logger),
		Logger:     logger,
	})
	require.NoError(t, err)

	snaps := make(chan session.Snapshot, 64)
	o.Inbox() <- session.Subscribe{ClientID: "e2e", Outbox: snaps}

	texts := []string{"hello there", "what did you have for lunch?", "huh. favorite color?"}
	sent := 0
	guessed := false
	timeout := time.After(15 * time.Second)

	for {
		select {
		case snap, ok := <-snaps:
			require.True(t, ok, "snapshot stream closed before resolution")

			// Our turn comes back exactly when the ledger holds both sides
			// of every exchange so far.
			if sent < len(texts) && snap.State.CanSend() && snap.State.Ledger.Len() == 2*sent {
				o.Inbox() <- session.SendText{Text: texts[sent]}
				sent++
			}
			if !guessed {
				if _, received := snap.State.Ledger.Counts(assign.LocalRole); received >= 1 {
					o.Inbox() <- session.SubmitGuess{Choice: session.GuessAgent}
					guessed = true
				}
			}

		case out := <-o.Result():
			require.True(t, out.IsCorrect)
			require.Equal(t, session.GuessAgent, out.OpponentKind)
			require.Equal(t, 1, out.Score, "three received messages score one point")
			require.False(t, out.Fallback)
			require.False(t, out.Mismatch)
			return

		case <-timeout:
			t.Fatalf("session never resolved (sent=%d guessed=%v)", sent, guessed)
		}
	}
}

// TestEndToEndHumanPair checks that two concurrent seekers end up relayed to
// each other through the same room.
func TestEndToEndHumanPair(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, _ := newTestServer(t, hub.Options{PairWindow: 30 * time.Second})
	client := authority.NewClient(srv.URL, logger)

	type result struct {
		user   string
		assign authority.Assignment
		err    error
	}
	results := make(chan result, 2)
	for _, user := range []string{"alice", "bob"} {
		user := user
		go func() {
			a, err := client.RequestMatch(ctx, user)
			results <- result{user: user, assign: a, err: err}
		}()
	}

	var paired []result
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			paired = append(paired, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("pairing never completed")
		}
	}

	require.Equal(t, paired[0].assign.MatchID, paired[1].assign.MatchID)
	require.Equal(t, session.KindHumanHuman, paired[0].assign.Kind)
	require.NotEqual(t, paired[0].assign.LocalRole, paired[1].assign.LocalRole)

	// Wire both ends up and relay one message initiator -> responder.
	var conns [2]*transport.WS
	users := map[session.Role]string{}
	for i, r := range paired {
		users[r.assign.LocalRole] = r.user
		c, err := transport.Dial(ctx, srv.URL+"/ws?matchId="+r.assign.MatchID+"&userId="+r.user, logger)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		conns[i] = c
	}

	// The relay joins on connect; each side starts with a history snapshot.
	for _, c := range conns {
		ev := recvInbound(t, c)
		require.Equal(t, session.InboundHistory, ev.Type)
	}

	var initiator *transport.WS
	for i, r := range paired {
		if r.assign.LocalRole == session.RoleInitiator {
			initiator = conns[i]
		}
	}
	require.NoError(t, initiator.Send(ctx, users[session.RoleInitiator], paired[0].assign.MatchID, "anyone home?", session.RoleInitiator))

	for _, c := range conns {
		ev := recvInbound(t, c)
		require.Equal(t, session.InboundMessage, ev.Type)
		require.Equal(t, "anyone home?", ev.Message.Text)
		require.Equal(t, session.RoleInitiator, ev.Message.Sender)
	}
}

func recvInbound(t *testing.T, c *transport.WS) session.Inbound {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "transport closed early")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for inbound event")
		return session.Inbound{} // unreachable
	}
}
