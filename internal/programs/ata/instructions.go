package ata

import "escrow-lab/internal/solana"

func createIx(variant uint8, payer, wallet, mint solana.PublicKey) solana.Instruction {
	return solana.Instruction{
		ProgramID: solana.AssociatedTokenProgramID,
		Accounts: []solana.AccountMeta{
			solana.WritableSigner(payer),
			solana.Writable(solana.MustAssociatedTokenAddress(wallet, mint)),
			solana.Readonly(wallet),
			solana.Readonly(mint),
			solana.Readonly(solana.SystemProgramID),
			solana.Readonly(solana.TokenProgramID),
		},
		Data: []byte{variant},
	}
}

// Create creates the associated token account of wallet for mint, failing if
// it exists.
func Create(payer, wallet, mint solana.PublicKey) solana.Instruction {
	return createIx(InstructionCreate, payer, wallet, mint)
}

// CreateIdempotent creates the account or succeeds if a matching one exists.
func CreateIdempotent(payer, wallet, mint solana.PublicKey) solana.Instruction {
	return createIx(InstructionCreateIdempotent, payer, wallet, mint)
}
