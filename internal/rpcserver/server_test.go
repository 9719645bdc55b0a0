package rpcserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"escrow-lab/internal/solana"
)

func postRPC(t *testing.T, url, body string) []byte {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return out
}

func TestServeRPC_Errors(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, solana.CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"getSlot"}`, solana.CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"getBlock"}`, solana.CodeMethodNotFound},
		{"missing param", `{"jsonrpc":"2.0","id":1,"method":"getBalance"}`, solana.CodeInvalidParams},
		{"bad pubkey", `{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["xyz"]}`, solana.CodeInvalidParams},
		{"empty batch", `[]`, solana.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp solana.RPCResponse
			require.NoError(t, json.Unmarshal(postRPC(t, ts.http.URL, tt.body), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestServeRPC_Batch(t *testing.T) {
	ts := newTestServer(t, Options{})
	body := `[
		{"jsonrpc":"2.0","id":1,"method":"getSlot"},
		{"jsonrpc":"2.0","id":"two","method":"getHealth"},
		{"jsonrpc":"2.0","id":3,"method":"nope"}
	]`

	var resps []solana.RPCResponse
	require.NoError(t, json.Unmarshal(postRPC(t, ts.http.URL, body), &resps))
	require.Len(t, resps, 3)

	assert.JSONEq(t, `1`, string(resps[0].ID))
	assert.Nil(t, resps[0].Error)
	assert.JSONEq(t, `0`, string(resps[0].Result))

	assert.JSONEq(t, `"two"`, string(resps[1].ID))
	assert.JSONEq(t, `"ok"`, string(resps[1].Result))

	require.NotNil(t, resps[2].Error)
	assert.Equal(t, solana.CodeMethodNotFound, resps[2].Error.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	// Generate at least one RPC sample
	postRPC(t, ts.http.URL, `{"jsonrpc":"2.0","id":1,"method":"getSlot"}`)

	metrics, err := http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rpc_requests_total")
}

func TestRequestID_Propagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
