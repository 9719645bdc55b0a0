package rpcserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/solana"
)

func TestWS_LogsSubscribeWithClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := newTestServer(t, Options{})

	client, err := solana.NewWSClient(ctx, ts.wsURL(), nil)
	require.NoError(t, err)
	defer client.Close()

	watched := solana.NewKeypair().PublicKey()
	notifications, err := client.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{watched.String()}})
	require.NoError(t, err)

	// Unrelated traffic is filtered out
	_, err = ts.client.RequestAirdrop(ctx, solana.NewKeypair().PublicKey(), sol)
	require.NoError(t, err)
	sig, err := ts.client.RequestAirdrop(ctx, watched, sol)
	require.NoError(t, err)

	select {
	case n := <-notifications:
		assert.Equal(t, sig.String(), n.Signature)
		assert.Nil(t, n.Err)
		assert.NotEmpty(t, n.Logs)
		assert.Equal(t, ts.ledger.Slot(), n.Slot)
	case <-ctx.Done():
		t.Fatal("no notification received")
	}
}

func dialWS(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func wsCall(t *testing.T, conn *websocket.Conn, req string) solana.RPCResponse {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(req)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp solana.RPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWS_SubscribeUnsubscribe(t *testing.T) {
	ts := newTestServer(t, Options{})
	conn := dialWS(t, ts)

	resp := wsCall(t, conn, `{"jsonrpc":"2.0","id":1,"method":"logsSubscribe","params":["all"]}`)
	require.Nil(t, resp.Error)
	var subID uint64
	require.NoError(t, json.Unmarshal(resp.Result, &subID))

	sig, err := ts.ledger.Airdrop(solana.NewKeypair().PublicKey(), sol)
	require.NoError(t, err)

	var notif solana.WSNotification
	require.NoError(t, conn.ReadJSON(&notif))
	assert.Equal(t, "logsNotification", notif.Method)
	require.NotNil(t, notif.Params)
	assert.Equal(t, subID, notif.Params.Subscription)
	assert.Equal(t, sig.String(), notif.Params.Result.Value.Signature)

	unsub := `{"jsonrpc":"2.0","id":2,"method":"logsUnsubscribe","params":[` + jsonUint(subID) + `]}`
	resp = wsCall(t, conn, unsub)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `true`, string(resp.Result))

	resp = wsCall(t, conn, unsub)
	require.NotNil(t, resp.Error)
	assert.Equal(t, solana.CodeInvalidParams, resp.Error.Code)
}

func TestWS_InvalidRequests(t *testing.T) {
	ts := newTestServer(t, Options{})
	conn := dialWS(t, ts)

	tests := []struct {
		req  string
		code int
	}{
		{`not json`, solana.CodeParseError},
		{`{"jsonrpc":"2.0","id":1,"method":"slotSubscribe"}`, solana.CodeMethodNotFound},
		{`{"jsonrpc":"2.0","id":2,"method":"logsSubscribe","params":["votes"]}`, solana.CodeInvalidParams},
		{`{"jsonrpc":"2.0","id":3,"method":"logsSubscribe","params":[{"mentions":[]}]}`, solana.CodeInvalidParams},
		{`{"jsonrpc":"2.0","id":4,"method":"logsSubscribe","params":[{"mentions":["bad"]}]}`, solana.CodeInvalidParams},
		{`{"jsonrpc":"2.0","id":5,"method":"logsSubscribe"}`, solana.CodeInvalidParams},
	}
	for _, tt := range tests {
		resp := wsCall(t, conn, tt.req)
		require.NotNil(t, resp.Error, tt.req)
		assert.Equal(t, tt.code, resp.Error.Code, tt.req)
	}
}

func TestWS_CloseReleasesSubscriptions(t *testing.T) {
	ts := newTestServer(t, Options{})
	conn := dialWS(t, ts)

	resp := wsCall(t, conn, `{"jsonrpc":"2.0","id":1,"method":"logsSubscribe","params":["all"]}`)
	require.Nil(t, resp.Error)

	ts.srv.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	ts.srv.connsMu.Lock()
	defer ts.srv.connsMu.Unlock()
	for c := range ts.srv.conns {
		c.mu.Lock()
		assert.True(t, c.closed)
		assert.Empty(t, c.subs)
		c.mu.Unlock()
	}
}

func jsonUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
