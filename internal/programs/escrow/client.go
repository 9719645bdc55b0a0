package escrow

import (
	"escrow-lab/internal/anchor"
	"escrow-lab/internal/solana"
)

// MakeArgs are the arguments of make.
type MakeArgs struct {
	Seed    uint64
	Receive uint64
	Amount  uint64
}

func (a MakeArgs) Data() ([]byte, error) { return anchor.EncodeInstruction("make", a) }

// TakeArgs is empty; take carries only its discriminator.
type TakeArgs struct{}

func (TakeArgs) Data() ([]byte, error) { return anchor.EncodeInstruction("take", nil) }

// RefundArgs is empty; refund carries only its discriminator.
type RefundArgs struct{}

func (RefundArgs) Data() ([]byte, error) { return anchor.EncodeInstruction("refund", nil) }

// MakeAccounts are the accounts of make. ToAccountMetas fixes their order,
// so fields may be set in any order.
type MakeAccounts struct {
	Maker                  solana.PublicKey
	Escrow                 solana.PublicKey
	MintA                  solana.PublicKey
	MintB                  solana.PublicKey
	MakerAtaA              solana.PublicKey
	Vault                  solana.PublicKey
	AssociatedTokenProgram solana.PublicKey
	TokenProgram           solana.PublicKey
	SystemProgram          solana.PublicKey
}

func (a MakeAccounts) ToAccountMetas() []solana.AccountMeta {
	return []solana.AccountMeta{
		solana.WritableSigner(a.Maker),
		solana.Writable(a.Escrow),
		solana.Readonly(a.MintA),
		solana.Readonly(a.MintB),
		solana.Writable(a.MakerAtaA),
		solana.Writable(a.Vault),
		solana.Readonly(a.AssociatedTokenProgram),
		solana.Readonly(a.TokenProgram),
		solana.Readonly(a.SystemProgram),
	}
}

// TakeAccounts are the accounts of take.
type TakeAccounts struct {
	Taker                  solana.PublicKey
	Maker                  solana.PublicKey
	Escrow                 solana.PublicKey
	MintA                  solana.PublicKey
	MintB                  solana.PublicKey
	Vault                  solana.PublicKey
	TakerAtaA              solana.PublicKey
	TakerAtaB              solana.PublicKey
	MakerAtaB              solana.PublicKey
	AssociatedTokenProgram solana.PublicKey
	TokenProgram           solana.PublicKey
	SystemProgram          solana.PublicKey
}

func (a TakeAccounts) ToAccountMetas() []solana.AccountMeta {
	return []solana.AccountMeta{
		solana.WritableSigner(a.Taker),
		solana.Writable(a.Maker),
		solana.Writable(a.Escrow),
		solana.Readonly(a.MintA),
		solana.Readonly(a.MintB),
		solana.Writable(a.Vault),
		solana.Writable(a.TakerAtaA),
		solana.Writable(a.TakerAtaB),
		solana.Writable(a.MakerAtaB),
		solana.Readonly(a.AssociatedTokenProgram),
		solana.Readonly(a.TokenProgram),
		solana.Readonly(a.SystemProgram),
	}
}

// RefundAccounts are the accounts of refund.
type RefundAccounts struct {
	Maker                  solana.PublicKey
	Escrow                 solana.PublicKey
	MintA                  solana.PublicKey
	Vault                  solana.PublicKey
	MakerAtaA              solana.PublicKey
	AssociatedTokenProgram solana.PublicKey
	TokenProgram           solana.PublicKey
	SystemProgram          solana.PublicKey
}

func (a RefundAccounts) ToAccountMetas() []solana.AccountMeta {
	return []solana.AccountMeta{
		solana.WritableSigner(a.Maker),
		solana.Writable(a.Escrow),
		solana.Readonly(a.MintA),
		solana.Writable(a.Vault),
		solana.Writable(a.MakerAtaA),
		solana.Readonly(a.AssociatedTokenProgram),
		solana.Readonly(a.TokenProgram),
		solana.Readonly(a.SystemProgram),
	}
}

// Client derives accounts and builds instructions for one deployment of the
// program.
type Client struct {
	ProgramID solana.PublicKey
}

// NewClient returns a client for the program at programID.
func NewClient(programID solana.PublicKey) *Client {
	return &Client{ProgramID: programID}
}

// MakeAccounts derives every make account from the maker, the mints and
// the seed.
func (c *Client) MakeAccounts(maker, mintA, mintB solana.PublicKey, seed uint64) (MakeAccounts, error) {
	escrow, _, err := FindEscrowAddressFor(c.ProgramID, maker, seed)
	if err != nil {
		return MakeAccounts{}, err
	}
	vault, err := FindVaultAddress(escrow, mintA)
	if err != nil {
		return MakeAccounts{}, err
	}
	makerAtaA, _, err := solana.FindAssociatedTokenAddress(maker, mintA)
	if err != nil {
		return MakeAccounts{}, err
	}
	return MakeAccounts{
		Maker:                  maker,
		Escrow:                 escrow,
		MintA:                  mintA,
		MintB:                  mintB,
		MakerAtaA:              makerAtaA,
		Vault:                  vault,
		AssociatedTokenProgram: solana.AssociatedTokenProgramID,
		TokenProgram:           solana.TokenProgramID,
		SystemProgram:          solana.SystemProgramID,
	}, nil
}

// TakeAccounts derives every take account.
func (c *Client) TakeAccounts(taker, maker, mintA, mintB solana.PublicKey, seed uint64) (TakeAccounts, error) {
	escrow, _, err := FindEscrowAddressFor(c.ProgramID, maker, seed)
	if err != nil {
		return TakeAccounts{}, err
	}
	vault, err := FindVaultAddress(escrow, mintA)
	if err != nil {
		return TakeAccounts{}, err
	}
	return TakeAccounts{
		Taker:                  taker,
		Maker:                  maker,
		Escrow:                 escrow,
		MintA:                  mintA,
		MintB:                  mintB,
		Vault:                  vault,
		TakerAtaA:              solana.MustAssociatedTokenAddress(taker, mintA),
		TakerAtaB:              solana.MustAssociatedTokenAddress(taker, mintB),
		MakerAtaB:              solana.MustAssociatedTokenAddress(maker, mintB),
		AssociatedTokenProgram: solana.AssociatedTokenProgramID,
		TokenProgram:           solana.TokenProgramID,
		SystemProgram:          solana.SystemProgramID,
	}, nil
}

// RefundAccounts derives every refund account.
func (c *Client) RefundAccounts(maker, mintA solana.PublicKey, seed uint64) (RefundAccounts, error) {
	escrow, _, err := FindEscrowAddressFor(c.ProgramID, maker, seed)
	if err != nil {
		return RefundAccounts{}, err
	}
	vault, err := FindVaultAddress(escrow, mintA)
	if err != nil {
		return RefundAccounts{}, err
	}
	return RefundAccounts{
		Maker:                  maker,
		Escrow:                 escrow,
		MintA:                  mintA,
		Vault:                  vault,
		MakerAtaA:              solana.MustAssociatedTokenAddress(maker, mintA),
		AssociatedTokenProgram: solana.AssociatedTokenProgramID,
		TokenProgram:           solana.TokenProgramID,
		SystemProgram:          solana.SystemProgramID,
	}, nil
}

// Make builds a make instruction.
func (c *Client) Make(accounts MakeAccounts, args MakeArgs) (solana.Instruction, error) {
	return anchor.NewBuilder(c.ProgramID).Accounts(accounts).Args(args).Instruction()
}

// Take builds a take instruction.
func (c *Client) Take(accounts TakeAccounts) (solana.Instruction, error) {
	return anchor.NewBuilder(c.ProgramID).Accounts(accounts).Args(TakeArgs{}).Instruction()
}

// Refund builds a refund instruction.
func (c *Client) Refund(accounts RefundAccounts) (solana.Instruction, error) {
	return anchor.NewBuilder(c.ProgramID).Accounts(accounts).Args(RefundArgs{}).Instruction()
}
