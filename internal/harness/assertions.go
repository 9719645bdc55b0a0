package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-lab/internal/solana"
)

// AssertTokenBalance checks the amount held by a token account.
func (c *Context) AssertTokenBalance(t testing.TB, account solana.PublicKey, want uint64) {
	t.Helper()
	got, err := c.TokenBalance(account)
	require.NoError(t, err)
	assert.Equal(t, want, got, "token balance of %s", account)
}

// AssertSolBalance checks the lamports held by pk.
func (c *Context) AssertSolBalance(t testing.TB, pk solana.PublicKey, want uint64) {
	t.Helper()
	assert.Equal(t, want, c.Balance(pk), "lamports of %s", pk)
}

// AssertAccountClosed checks pk no longer holds lamports.
func (c *Context) AssertAccountClosed(t testing.TB, pk solana.PublicKey) {
	t.Helper()
	assert.False(t, c.AccountExists(pk), "account %s should be closed", pk)
}

// AssertAccountExists checks pk holds lamports.
func (c *Context) AssertAccountExists(t testing.TB, pk solana.PublicKey) {
	t.Helper()
	assert.True(t, c.AccountExists(pk), "account %s should exist", pk)
}

// AssertMintSupply checks the supply of a mint.
func (c *Context) AssertMintSupply(t testing.TB, mint solana.PublicKey, want uint64) {
	t.Helper()
	got, err := c.MintSupply(mint)
	require.NoError(t, err)
	assert.Equal(t, want, got, "supply of %s", mint)
}

// AssertAccountOwner checks the program owning pk.
func (c *Context) AssertAccountOwner(t testing.TB, pk, owner solana.PublicKey) {
	t.Helper()
	acct, ok := c.SVM.GetAccount(pk)
	require.True(t, ok, "account %s not found", pk)
	assert.Equal(t, owner, acct.Owner, "owner of %s", pk)
}
