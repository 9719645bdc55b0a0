package rpcserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
)

const sol = 1_000_000_000

type testServer struct {
	ledger *svm.SVM
	srv    *Server
	http   *httptest.Server
	client *solana.HTTPClient
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	if opts.Ledger == nil {
		opts.Ledger = svm.New()
	}
	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		opts.Ledger.Close()
	})
	return &testServer{
		ledger: opts.Ledger,
		srv:    srv,
		http:   ts,
		client: solana.NewHTTPClient(ts.URL, solana.WithMaxRetries(0)),
	}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
}

// fund creates a keypair holding lamports.
func (ts *testServer) fund(t *testing.T, lamports uint64) *solana.Keypair {
	t.Helper()
	kp := solana.NewKeypair()
	_, err := ts.client.RequestAirdrop(context.Background(), kp.PublicKey(), lamports)
	require.NoError(t, err)
	return kp
}

// transfer builds a signed system transfer against the current blockhash.
func (ts *testServer) transfer(t *testing.T, from *solana.Keypair, to solana.PublicKey, lamports uint64) *solana.Transaction {
	t.Helper()
	blockhash, err := ts.client.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	tx, err := solana.NewSignedTransaction(
		[]solana.Instruction{system.Transfer(from.PublicKey(), to, lamports)},
		from, nil, blockhash,
	)
	require.NoError(t, err)
	return tx
}
