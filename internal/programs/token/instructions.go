package token

import (
	"encoding/binary"

	"escrow-lab/internal/solana"
)

func amountData(tag uint8, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

func ix(data []byte, accounts ...solana.AccountMeta) solana.Instruction {
	return solana.Instruction{ProgramID: solana.TokenProgramID, Accounts: accounts, Data: data}
}

func initializeMintData(tag uint8, decimals uint8, authority solana.PublicKey, freeze *solana.PublicKey) []byte {
	data := make([]byte, 0, 67)
	data = append(data, tag, decimals)
	data = append(data, authority[:]...)
	if freeze == nil {
		return append(data, 0)
	}
	data = append(data, 1)
	return append(data, freeze[:]...)
}

// InitializeMint initializes a mint; the rent sysvar is passed for layout
// compatibility.
func InitializeMint(mint solana.PublicKey, decimals uint8, authority solana.PublicKey, freeze *solana.PublicKey) solana.Instruction {
	return ix(initializeMintData(InstructionInitializeMint, decimals, authority, freeze),
		solana.Writable(mint),
		solana.Readonly(solana.SysvarRentID),
	)
}

// InitializeMint2 initializes a mint without the rent sysvar.
func InitializeMint2(mint solana.PublicKey, decimals uint8, authority solana.PublicKey, freeze *solana.PublicKey) solana.Instruction {
	return ix(initializeMintData(InstructionInitializeMint2, decimals, authority, freeze),
		solana.Writable(mint),
	)
}

// InitializeAccount initializes a token account whose owner is passed as an account.
func InitializeAccount(account, mint, owner solana.PublicKey) solana.Instruction {
	return ix([]byte{InstructionInitializeAccount},
		solana.Writable(account),
		solana.Readonly(mint),
		solana.Readonly(owner),
		solana.Readonly(solana.SysvarRentID),
	)
}

// InitializeAccount3 initializes a token account with the owner in instruction data.
func InitializeAccount3(account, mint, owner solana.PublicKey) solana.Instruction {
	data := append([]byte{InstructionInitializeAccount3}, owner[:]...)
	return ix(data,
		solana.Writable(account),
		solana.Readonly(mint),
	)
}

// Transfer moves amount from source to destination.
func Transfer(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	return ix(amountData(InstructionTransfer, amount),
		solana.Writable(source),
		solana.Writable(destination),
		solana.ReadonlySigner(owner),
	)
}

// TransferChecked is Transfer with mint and decimals verification.
func TransferChecked(source, mint, destination, owner solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := append(amountData(InstructionTransferChecked, amount), decimals)
	return ix(data,
		solana.Writable(source),
		solana.Readonly(mint),
		solana.Writable(destination),
		solana.ReadonlySigner(owner),
	)
}

// MintTo mints new tokens into destination.
func MintTo(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	return ix(amountData(InstructionMintTo, amount),
		solana.Writable(mint),
		solana.Writable(destination),
		solana.ReadonlySigner(authority),
	)
}

// Burn destroys tokens held by account.
func Burn(account, mint, owner solana.PublicKey, amount uint64) solana.Instruction {
	return ix(amountData(InstructionBurn, amount),
		solana.Writable(account),
		solana.Writable(mint),
		solana.ReadonlySigner(owner),
	)
}

// CloseAccount closes an empty token account, sending its lamports to destination.
func CloseAccount(account, destination, owner solana.PublicKey) solana.Instruction {
	return ix([]byte{InstructionCloseAccount},
		solana.Writable(account),
		solana.Writable(destination),
		solana.ReadonlySigner(owner),
	)
}

// FreezeAccount freezes a token account.
func FreezeAccount(account, mint, authority solana.PublicKey) solana.Instruction {
	return ix([]byte{InstructionFreezeAccount},
		solana.Writable(account),
		solana.Readonly(mint),
		solana.ReadonlySigner(authority),
	)
}

// ThawAccount unfreezes a token account.
func ThawAccount(account, mint, authority solana.PublicKey) solana.Instruction {
	return ix([]byte{InstructionThawAccount},
		solana.Writable(account),
		solana.Readonly(mint),
		solana.ReadonlySigner(authority),
	)
}
