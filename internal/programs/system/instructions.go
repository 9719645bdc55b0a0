package system

import (
	"encoding/binary"

	"escrow-lab/internal/solana"
)

// CreateAccount funds, allocates and assigns a new account. Both from and
// newAccount must sign.
func CreateAccount(from, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 4+8+8+32)
	binary.LittleEndian.PutUint32(data, InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], space)
	copy(data[20:], owner[:])
	return solana.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []solana.AccountMeta{
			solana.WritableSigner(from),
			solana.WritableSigner(newAccount),
		},
		Data: data,
	}
}

// Transfer moves lamports between system accounts.
func Transfer(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return solana.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []solana.AccountMeta{
			solana.WritableSigner(from),
			solana.Writable(to),
		},
		Data: data,
	}
}

// Assign changes the owner of a system account.
func Assign(account, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 4+32)
	binary.LittleEndian.PutUint32(data, InstructionAssign)
	copy(data[4:], owner[:])
	return solana.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []solana.AccountMeta{solana.WritableSigner(account)},
		Data:      data,
	}
}

// Allocate sets the data length of a system account.
func Allocate(account solana.PublicKey, space uint64) solana.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:], space)
	return solana.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []solana.AccountMeta{solana.WritableSigner(account)},
		Data:      data,
	}
}
