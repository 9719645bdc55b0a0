package harness

import (
	"errors"
	"fmt"

	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
)

// ErrAccountNotFound is returned when a queried account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// CreateFundedAccount returns a new keypair holding lamports.
func (c *Context) CreateFundedAccount(lamports uint64) (*solana.Keypair, error) {
	kp := solana.NewKeypair()
	if _, err := c.SVM.Airdrop(kp.PublicKey(), lamports); err != nil {
		return nil, fmt.Errorf("fund %s: %w", kp.PublicKey(), err)
	}
	return kp, nil
}

// CreateFundedAccounts returns n keypairs each holding lamports.
func (c *Context) CreateFundedAccounts(n int, lamports uint64) ([]*solana.Keypair, error) {
	out := make([]*solana.Keypair, 0, n)
	for i := 0; i < n; i++ {
		kp, err := c.CreateFundedAccount(lamports)
		if err != nil {
			return nil, err
		}
		out = append(out, kp)
	}
	return out, nil
}

// CreateTokenMint creates a mint with authority as mint authority.
func (c *Context) CreateTokenMint(authority *solana.Keypair, decimals uint8) (solana.PublicKey, error) {
	return NewCreateMint(c.SVM, c.Payer).Authority(authority.PublicKey()).Decimals(decimals).Send()
}

// CreateAssociatedTokenAccount creates owner's associated account for mint.
func (c *Context) CreateAssociatedTokenAccount(mint, owner solana.PublicKey) (solana.PublicKey, error) {
	return NewCreateAssociatedTokenAccount(c.SVM, c.Payer, mint).Owner(owner).Send()
}

// CreateTokenAccount creates a token account at a fresh address, outside the
// associated token account scheme.
func (c *Context) CreateTokenAccount(mint, owner solana.PublicKey) (solana.PublicKey, error) {
	account := solana.NewKeypair()
	ixs := []solana.Instruction{
		system.CreateAccount(c.Payer.PublicKey(), account.PublicKey(),
			c.SVM.MinimumBalanceForRentExemption(token.AccountSize), token.AccountSize, solana.TokenProgramID),
		token.InitializeAccount3(account.PublicKey(), mint, owner),
	}
	if _, err := send(c.SVM, c.Payer, ixs, account); err != nil {
		return solana.PublicKey{}, fmt.Errorf("create token account: %w", err)
	}
	return account.PublicKey(), nil
}

// MintTo mints amount to dest, signed by the mint authority.
func (c *Context) MintTo(mint, dest solana.PublicKey, authority *solana.Keypair, amount uint64) error {
	return NewMintTo(c.SVM, c.Payer, mint, dest, amount).Owner(authority).Send()
}

// GetPDA derives a program address, panicking if no bump works.
func (c *Context) GetPDA(seeds [][]byte, program solana.PublicKey) solana.PublicKey {
	pda, _ := c.GetPDAWithBump(seeds, program)
	return pda
}

// GetPDAWithBump derives a program address and its bump.
func (c *Context) GetPDAWithBump(seeds [][]byte, program solana.PublicKey) (solana.PublicKey, uint8) {
	pda, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		panic(fmt.Sprintf("derive program address: %v", err))
	}
	return pda, bump
}

// TokenBalance returns the amount held by a token account.
func (c *Context) TokenBalance(account solana.PublicKey) (uint64, error) {
	acct, ok := c.SVM.GetAccount(account)
	if !ok {
		return 0, fmt.Errorf("%s: %w", account, ErrAccountNotFound)
	}
	state, err := token.UnpackAccount(acct.Data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", account, err)
	}
	return state.Amount, nil
}

// MintSupply returns the supply of a mint.
func (c *Context) MintSupply(mint solana.PublicKey) (uint64, error) {
	m, err := loadMint(c.SVM, mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

func loadMint(s *svm.SVM, mint solana.PublicKey) (*token.Mint, error) {
	acct, ok := s.GetAccount(mint)
	if !ok {
		return nil, fmt.Errorf("mint %s: %w", mint, ErrAccountNotFound)
	}
	m, err := token.UnpackMint(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", mint, err)
	}
	return m, nil
}
