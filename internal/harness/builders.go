package harness

import (
	"fmt"

	"escrow-lab/internal/programs/ata"
	"escrow-lab/internal/programs/system"
	"escrow-lab/internal/programs/token"
	"escrow-lab/internal/solana"
	"escrow-lab/internal/svm"
)

func send(s *svm.SVM, payer *solana.Keypair, ixs []solana.Instruction, signers ...*solana.Keypair) (svm.TransactionMetadata, error) {
	tx, err := signUnique(s, ixs, payer, signers)
	if err != nil {
		return svm.TransactionMetadata{}, err
	}
	return s.SendTransaction(tx)
}

// signUnique signs ixs with the latest blockhash. A transaction identical to
// one already processed gets a fresh blockhash instead of failing replay
// protection.
func signUnique(s *svm.SVM, ixs []solana.Instruction, payer *solana.Keypair, signers []*solana.Keypair) (*solana.Transaction, error) {
	tx, err := solana.NewSignedTransaction(ixs, payer, signers, s.LatestBlockhash())
	if err != nil {
		return nil, err
	}
	if _, seen := s.GetTransaction(tx.Signature()); !seen {
		return tx, nil
	}
	s.ExpireBlockhash()
	return solana.NewSignedTransaction(ixs, payer, signers, s.LatestBlockhash())
}

// CreateMint builds a transaction creating and initializing a mint.
type CreateMint struct {
	svm       *svm.SVM
	payer     *solana.Keypair
	mint      *solana.Keypair
	authority *solana.PublicKey
	freeze    *solana.PublicKey
	decimals  uint8
}

// NewCreateMint creates a mint paid for by payer. The payer is the default
// mint authority.
func NewCreateMint(s *svm.SVM, payer *solana.Keypair) *CreateMint {
	return &CreateMint{svm: s, payer: payer, decimals: 9}
}

// Authority sets the mint authority.
func (b *CreateMint) Authority(pk solana.PublicKey) *CreateMint {
	b.authority = &pk
	return b
}

// FreezeAuthority sets the freeze authority.
func (b *CreateMint) FreezeAuthority(pk solana.PublicKey) *CreateMint {
	b.freeze = &pk
	return b
}

// Decimals sets the mint decimals. The default is 9.
func (b *CreateMint) Decimals(d uint8) *CreateMint {
	b.decimals = d
	return b
}

// Keypair uses kp as the mint address instead of a fresh keypair.
func (b *CreateMint) Keypair(kp *solana.Keypair) *CreateMint {
	b.mint = kp
	return b
}

// Send submits the transaction and returns the mint address.
func (b *CreateMint) Send() (solana.PublicKey, error) {
	mint := b.mint
	if mint == nil {
		mint = solana.NewKeypair()
	}
	authority := b.payer.PublicKey()
	if b.authority != nil {
		authority = *b.authority
	}
	ixs := []solana.Instruction{
		system.CreateAccount(b.payer.PublicKey(), mint.PublicKey(),
			b.svm.MinimumBalanceForRentExemption(token.MintSize), token.MintSize, solana.TokenProgramID),
		token.InitializeMint2(mint.PublicKey(), b.decimals, authority, b.freeze),
	}
	if _, err := send(b.svm, b.payer, ixs, mint); err != nil {
		return solana.PublicKey{}, fmt.Errorf("create mint: %w", err)
	}
	return mint.PublicKey(), nil
}

// CreateAssociatedTokenAccount builds an associated token account creation.
type CreateAssociatedTokenAccount struct {
	svm        *svm.SVM
	payer      *solana.Keypair
	mint       solana.PublicKey
	owner      *solana.PublicKey
	idempotent bool
}

// NewCreateAssociatedTokenAccount creates the payer's associated account for
// mint unless Owner names another wallet.
func NewCreateAssociatedTokenAccount(s *svm.SVM, payer *solana.Keypair, mint solana.PublicKey) *CreateAssociatedTokenAccount {
	return &CreateAssociatedTokenAccount{svm: s, payer: payer, mint: mint}
}

// Owner sets the wallet the account belongs to.
func (b *CreateAssociatedTokenAccount) Owner(pk solana.PublicKey) *CreateAssociatedTokenAccount {
	b.owner = &pk
	return b
}

// Idempotent tolerates an existing account.
func (b *CreateAssociatedTokenAccount) Idempotent() *CreateAssociatedTokenAccount {
	b.idempotent = true
	return b
}

// Send submits the transaction and returns the account address.
func (b *CreateAssociatedTokenAccount) Send() (solana.PublicKey, error) {
	owner := b.payer.PublicKey()
	if b.owner != nil {
		owner = *b.owner
	}
	ix := ata.Create(b.payer.PublicKey(), owner, b.mint)
	if b.idempotent {
		ix = ata.CreateIdempotent(b.payer.PublicKey(), owner, b.mint)
	}
	if _, err := send(b.svm, b.payer, []solana.Instruction{ix}); err != nil {
		return solana.PublicKey{}, fmt.Errorf("create associated token account: %w", err)
	}
	return solana.MustAssociatedTokenAddress(owner, b.mint), nil
}

// MintTo builds a mint-to transaction.
type MintTo struct {
	svm         *svm.SVM
	payer       *solana.Keypair
	mint        solana.PublicKey
	destination solana.PublicKey
	amount      uint64
	owner       *solana.Keypair
}

// NewMintTo mints amount to the destination token account. The payer is the
// default mint authority.
func NewMintTo(s *svm.SVM, payer *solana.Keypair, mint, destination solana.PublicKey, amount uint64) *MintTo {
	return &MintTo{svm: s, payer: payer, mint: mint, destination: destination, amount: amount}
}

// Owner sets the mint authority that signs.
func (b *MintTo) Owner(kp *solana.Keypair) *MintTo {
	b.owner = kp
	return b
}

// Send submits the transaction.
func (b *MintTo) Send() error {
	owner := b.payer
	if b.owner != nil {
		owner = b.owner
	}
	ix := token.MintTo(b.mint, b.destination, owner.PublicKey(), b.amount)
	if _, err := send(b.svm, b.payer, []solana.Instruction{ix}, owner); err != nil {
		return fmt.Errorf("mint to: %w", err)
	}
	return nil
}

// Transfer builds a TransferChecked transaction.
type Transfer struct {
	svm         *svm.SVM
	payer       *solana.Keypair
	mint        solana.PublicKey
	destination solana.PublicKey
	amount      uint64
	source      *solana.PublicKey
	owner       *solana.Keypair
}

// NewTransfer moves amount of mint to the destination token account. The
// source defaults to the owner's associated account and the owner to payer.
func NewTransfer(s *svm.SVM, payer *solana.Keypair, mint, destination solana.PublicKey, amount uint64) *Transfer {
	return &Transfer{svm: s, payer: payer, mint: mint, destination: destination, amount: amount}
}

// Source sets the token account debited.
func (b *Transfer) Source(pk solana.PublicKey) *Transfer {
	b.source = &pk
	return b
}

// Owner sets the source account owner that signs.
func (b *Transfer) Owner(kp *solana.Keypair) *Transfer {
	b.owner = kp
	return b
}

// Send submits the transaction.
func (b *Transfer) Send() error {
	owner := b.payer
	if b.owner != nil {
		owner = b.owner
	}
	source := solana.MustAssociatedTokenAddress(owner.PublicKey(), b.mint)
	if b.source != nil {
		source = *b.source
	}
	m, err := loadMint(b.svm, b.mint)
	if err != nil {
		return err
	}
	ix := token.TransferChecked(source, b.mint, b.destination, owner.PublicKey(), b.amount, m.Decimals)
	if _, err := send(b.svm, b.payer, []solana.Instruction{ix}, owner); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}
